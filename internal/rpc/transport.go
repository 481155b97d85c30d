package rpc

import "context"

// Transport is the messaging surface the worker and server roles use
// to run one UPDATE_MODEL round. A round is identified by the pushing
// task's logical timestamp (taskpool.BlockRound.TPush): unique and
// monotonically increasing, so it doubles as the round key without a
// separate handshake.
type Transport interface {
	// Push delivers a worker's contribution for round t to serverID.
	Push(ctx context.Context, serverID string, msg PushMsg, t int64) error

	// AwaitPushes blocks until expected workers have pushed for round
	// t, then returns their contributions.
	AwaitPushes(ctx context.Context, serverID string, blockID int, t int64, expected int) ([]PushMsg, error)

	// Finish announces the server's updated segment for round t,
	// releasing any Pull callers waiting on it.
	Finish(ctx context.Context, serverID string, blockID int, t int64, seg WeightSegment) error

	// Pull blocks until Finish has been called for round t, then
	// returns the segment.
	Pull(ctx context.Context, serverID string, blockID int, t int64) (WeightSegment, error)
}
