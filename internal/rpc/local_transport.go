package rpc

import (
	"context"
	"fmt"
	"sync"
)

// LocalTransport implements Transport with in-process rendezvous,
// used by the default single-process simulation (cmd/bcdctl run) and
// by tests. It never crosses a process boundary, so Push/Finish can
// never fail except on context cancellation.
type LocalTransport struct {
	mu     sync.Mutex
	cond   *sync.Cond
	rounds map[string]*roundState
}

type roundState struct {
	pushes   []PushMsg
	finished bool
	seg      WeightSegment
}

func NewLocalTransport() *LocalTransport {
	lt := &LocalTransport{rounds: make(map[string]*roundState)}
	lt.cond = sync.NewCond(&lt.mu)
	return lt
}

func key(serverID string, t int64) string { return fmt.Sprintf("%s@%d", serverID, t) }

func (lt *LocalTransport) roundLocked(serverID string, t int64) *roundState {
	k := key(serverID, t)
	rs, ok := lt.rounds[k]
	if !ok {
		rs = &roundState{}
		lt.rounds[k] = rs
	}
	return rs
}

func (lt *LocalTransport) Push(ctx context.Context, serverID string, msg PushMsg, t int64) error {
	lt.mu.Lock()
	rs := lt.roundLocked(serverID, t)
	rs.pushes = append(rs.pushes, msg)
	lt.cond.Broadcast()
	lt.mu.Unlock()
	return ctx.Err()
}

func (lt *LocalTransport) AwaitPushes(ctx context.Context, serverID string, blockID int, t int64, expected int) ([]PushMsg, error) {
	stop := lt.wakeOnDone(ctx)
	defer stop()
	lt.mu.Lock()
	defer lt.mu.Unlock()
	rs := lt.roundLocked(serverID, t)
	for len(rs.pushes) < expected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lt.cond.Wait()
	}
	out := make([]PushMsg, len(rs.pushes))
	copy(out, rs.pushes)
	return out, nil
}

// wakeOnDone broadcasts lt.cond once ctx is cancelled, so waiters
// blocked in AwaitPushes/Pull re-check ctx.Err() instead of hanging
// forever. The returned stop func must be called once the caller is
// done waiting.
func (lt *LocalTransport) wakeOnDone(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			lt.mu.Lock()
			lt.cond.Broadcast()
			lt.mu.Unlock()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (lt *LocalTransport) Finish(ctx context.Context, serverID string, blockID int, t int64, seg WeightSegment) error {
	lt.mu.Lock()
	rs := lt.roundLocked(serverID, t)
	rs.finished = true
	rs.seg = seg
	lt.cond.Broadcast()
	lt.mu.Unlock()
	return ctx.Err()
}

func (lt *LocalTransport) Pull(ctx context.Context, serverID string, blockID int, t int64) (WeightSegment, error) {
	stop := lt.wakeOnDone(ctx)
	defer stop()
	lt.mu.Lock()
	defer lt.mu.Unlock()
	rs := lt.roundLocked(serverID, t)
	for !rs.finished {
		if err := ctx.Err(); err != nil {
			return WeightSegment{}, err
		}
		lt.cond.Wait()
	}
	return rs.seg, nil
}
