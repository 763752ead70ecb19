package driver

import (
	"context"
	"errors"
	"time"

	"github.com/segmentflow/rebalancer/types"
)

// finishError dispatches to finishCancelledAt or finishFailedAt depending
// on whether err is a context cancellation, so callers don't need to
// make that distinction at every call site.
func (d *Driver) finishError(table string, result RebalanceResult, err error, start time.Time) RebalanceResult {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return d.finishCancelledAt(table, result, err, start)
	}

	return d.finishFailedAt(table, result, err, start)
}

func (d *Driver) finishFailedAt(table string, result RebalanceResult, err error, start time.Time) RebalanceResult {
	result.Status = types.StatusFailed
	result.Err = err
	result.Message = err.Error()

	d.observer.OnError(err)
	d.logger.Error("rebalance failed", "table", table, "error", err)
	d.metrics.RecordRun(table, types.StatusFailed, time.Since(start).Seconds())

	return result
}

func (d *Driver) finishCancelledAt(table string, result RebalanceResult, err error, start time.Time) RebalanceResult {
	result.Status = types.StatusCancelled
	result.Err = err
	result.Message = "context cancelled"

	d.logger.Warn("rebalance cancelled", "table", table, "error", err)
	d.metrics.RecordRun(table, types.StatusCancelled, time.Since(start).Seconds())

	return result
}

// finishStopped handles an observer-requested stop detected at one of the
// checkpoints named in §4.8.
func (d *Driver) finishStopped(table string, result RebalanceResult, start time.Time) RebalanceResult {
	result.Status = d.observer.GetStopStatus()
	result.Message = "stopped by observer"

	d.logger.Info("rebalance stopped by observer", "table", table, "status", result.Status)
	d.metrics.RecordRun(table, result.Status, time.Since(start).Seconds())

	return result
}

func (d *Driver) finishNoOp(table string, result RebalanceResult, start time.Time) RebalanceResult {
	result.Status = types.StatusNoOp
	result.Message = "target placement and instance partitions are unchanged"

	d.observer.OnNoop(result.Message)
	d.logger.Info("rebalance no-op", "table", table)
	d.metrics.RecordRun(table, types.StatusNoOp, time.Since(start).Seconds())

	return result
}

func (d *Driver) finishDryRun(table string, result RebalanceResult, start time.Time) RebalanceResult {
	result.Status = types.StatusDryRun
	result.Message = "dry run completed, no placement change was written"

	d.logger.Info("rebalance dry run completed", "table", table)
	d.metrics.RecordRun(table, types.StatusDryRun, time.Since(start).Seconds())

	return result
}

func (d *Driver) finishDone(table string, result RebalanceResult, start time.Time) RebalanceResult {
	result.Status = types.StatusDone
	result.Message = "rebalance converged"

	d.observer.OnSuccess(result.Message)
	d.logger.Info("rebalance done", "table", table)
	d.metrics.RecordRun(table, types.StatusDone, time.Since(start).Seconds())

	return result
}
