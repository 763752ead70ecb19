package forcecommit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/segmentflow/rebalancer/internal/natsutil"
	"github.com/segmentflow/rebalancer/types"
)

// NATSRealtimeManager implements types.RealtimeManager as a NATS
// request/reply client. It has no teacher analogue in
// internal/election (that package coordinates leadership through a
// JetStream KV bucket, not pub/sub), but reuses the *nats.Conn
// connection-handling shape the teacher's subscription package builds
// on and the JSON wire-envelope idiom internal/store/wire.go uses for
// its KV documents.
type NATSRealtimeManager struct {
	conn          *nats.Conn
	subjectPrefix string
}

var _ types.RealtimeManager = (*NATSRealtimeManager)(nil)

// NewNATSRealtimeManager builds a NATSRealtimeManager publishing requests
// under "<subjectPrefix>.forceCommit" and
// "<subjectPrefix>.segmentsYetToBeCommitted".
func NewNATSRealtimeManager(conn *nats.Conn, subjectPrefix string) *NATSRealtimeManager {
	return &NATSRealtimeManager{conn: conn, subjectPrefix: subjectPrefix}
}

type forceCommitRequest struct {
	Table     string   `json:"table"`
	Segments  []string `json:"segments"`
	BatchSize int      `json:"batchSize"`
}

type forceCommitReply struct {
	Committed []string `json:"committed"`
}

// ForceCommit publishes a forceCommit request and decodes the reply's
// committed-segment list.
func (m *NATSRealtimeManager) ForceCommit(ctx context.Context, table string, segments []types.SegmentID, cfg types.ForceCommitBatchConfig) ([]types.SegmentID, error) {
	req := forceCommitRequest{
		Table:     table,
		Segments:  segmentStrings(segments),
		BatchSize: cfg.BatchSize,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode force commit request: %w", err)
	}

	msg, err := m.conn.RequestWithContext(ctx, m.subjectPrefix+".forceCommit", data)
	if err != nil {
		if natsutil.IsConnectivityError(err) {
			return nil, fmt.Errorf("%w: force commit request: %v", types.ErrTransient, err)
		}

		return nil, fmt.Errorf("%w: force commit request: %v", types.ErrForceCommitFailed, err)
	}

	var reply forceCommitReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode force commit reply: %w", err)
	}

	return segmentIDs(reply.Committed), nil
}

type yetToBeCommittedRequest struct {
	Table    string   `json:"table"`
	Segments []string `json:"segments"`
}

type yetToBeCommittedReply struct {
	Remaining []string `json:"remaining"`
}

// GetSegmentsYetToBeCommitted publishes a segmentsYetToBeCommitted
// request and decodes the reply's still-uncommitted segment list.
func (m *NATSRealtimeManager) GetSegmentsYetToBeCommitted(ctx context.Context, table string, set []types.SegmentID) ([]types.SegmentID, error) {
	req := yetToBeCommittedRequest{
		Table:    table,
		Segments: segmentStrings(set),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode status request: %w", err)
	}

	msg, err := m.conn.RequestWithContext(ctx, m.subjectPrefix+".segmentsYetToBeCommitted", data)
	if err != nil {
		if natsutil.IsConnectivityError(err) {
			return nil, fmt.Errorf("%w: status request: %v", types.ErrTransient, err)
		}

		return nil, fmt.Errorf("%w: status request: %v", types.ErrForceCommitFailed, err)
	}

	var reply yetToBeCommittedReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode status reply: %w", err)
	}

	return segmentIDs(reply.Remaining), nil
}

func segmentStrings(segments []types.SegmentID) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = string(s)
	}

	return out
}

func segmentIDs(segments []string) []types.SegmentID {
	out := make([]types.SegmentID, len(segments))
	for i, s := range segments {
		out[i] = types.SegmentID(s)
	}

	return out
}
