package observer

import (
	"context"

	"github.com/segmentflow/rebalancer/types"
)

// Logging decorates an Observer, logging every trigger, terminal and
// rollback call through a types.Logger before delegating to the wrapped
// Observer; IsStopped and GetStopStatus are delegated without logging. Useful for a
// CLI-less test harness or any caller that wants a visible trail of the
// driver's checkpoints without implementing its own Observer.
type Logging struct {
	inner  types.Observer
	logger types.Logger
	table  string
}

var _ types.Observer = (*Logging)(nil)

// NewLogging wraps inner, logging through logger. If inner is nil, calls
// still log and IsStopped/GetStopStatus behave like Nop.
func NewLogging(table string, inner types.Observer, logger types.Logger) *Logging {
	if inner == nil {
		inner = Nop{}
	}

	return &Logging{inner: inner, logger: logger, table: table}
}

func (l *Logging) OnTrigger(ctx context.Context, kind types.TriggerKind, current, target types.PlacementMap) {
	l.logger.Debug("rebalance trigger", "table", l.table, "trigger", kind.String(),
		"currentSegments", len(current), "targetSegments", len(target))
	l.inner.OnTrigger(ctx, kind, current, target)
}

func (l *Logging) OnNoop(message string) {
	l.logger.Info("rebalance no-op", "table", l.table, "message", message)
	l.inner.OnNoop(message)
}

func (l *Logging) OnSuccess(message string) {
	l.logger.Info("rebalance succeeded", "table", l.table, "message", message)
	l.inner.OnSuccess(message)
}

func (l *Logging) OnError(err error) {
	l.logger.Error("rebalance failed", "table", l.table, "error", err)
	l.inner.OnError(err)
}

func (l *Logging) OnRollback() {
	l.logger.Warn("ideal state CAS collision, re-reading and re-planning", "table", l.table)
	l.inner.OnRollback()
}

func (l *Logging) IsStopped() bool {
	return l.inner.IsStopped()
}

func (l *Logging) GetStopStatus() types.TerminalStatus {
	return l.inner.GetStopStatus()
}
