// Package taskpool implements the scheduler's bounded-delay task
// dispatch (spec §4.1, §6.1): a monotonic logical clock plus blocking
// admission control so at most τ previously issued tasks may still be
// outstanding when a new one is admitted.
package taskpool

import "sync"

// Pool hands out strictly increasing logical timestamps, one per
// submitted task, and blocks Submit until the caller's staleness bound
// is satisfied.
type Pool struct {
	mu          sync.Mutex
	cond        *sync.Cond
	clock       int64
	outstanding map[int64]struct{}
}

func New() *Pool {
	p := &Pool{outstanding: make(map[int64]struct{})}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Time returns the most recently assigned timestamp.
func (p *Pool) Time() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock
}

// Submit blocks until every previously assigned timestamp <= waitTime
// has been finished, then assigns and returns the next timestamp.
func (p *Pool) Submit(waitTime int64) int64 {
	p.mu.Lock()
	for p.hasOutstandingAtOrBeforeLocked(waitTime) {
		p.cond.Wait()
	}
	p.clock++
	t := p.clock
	p.outstanding[t] = struct{}{}
	p.mu.Unlock()
	return t
}

// FinishIncomingTask marks the task assigned timestamp t as complete,
// waking any Submit callers whose staleness bound it was blocking.
func (p *Pool) FinishIncomingTask(t int64) {
	p.mu.Lock()
	delete(p.outstanding, t)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// SubmitAndWait submits a task and runs work synchronously for its
// assigned timestamp before marking it finished, mirroring the
// scheduler's blocking EVALUATE_PROGRESS dispatch.
func (p *Pool) SubmitAndWait(waitTime int64, work func(t int64) error) error {
	t := p.Submit(waitTime)
	err := work(t)
	p.FinishIncomingTask(t)
	return err
}

// OutstandingSpan returns the number of timestamps currently in
// flight, for staleness-bound assertions in tests.
func (p *Pool) OutstandingSpan() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

func (p *Pool) hasOutstandingAtOrBeforeLocked(waitTime int64) bool {
	for t := range p.outstanding {
		if t <= waitTime {
			return true
		}
	}
	return false
}
