package hub

import (
	"sync"
)

// invocationQueue is an unbounded FIFO between the dispatch loop and the
// handler worker. Pushing never blocks.
type invocationQueue struct {
	mu     *sync.Mutex
	cond   *sync.Cond
	items  []*Invocation
	closed bool
}

func newInvocationQueue() *invocationQueue {
	mu := &sync.Mutex{}
	return &invocationQueue{
		mu:   mu,
		cond: sync.NewCond(mu),
	}
}

func (q *invocationQueue) push(inv *Invocation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, inv)
	q.cond.Signal()
	return true
}

// pop blocks until an invocation is available. It reports false once the
// queue is closed and empty.
func (q *invocationQueue) pop() (*Invocation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	inv := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return inv, true
}

// close stops further pushes and wakes the worker. Queued invocations are
// dropped when discard is set, otherwise the worker drains them.
func (q *invocationQueue) close(discard bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	if discard {
		q.items = nil
	}
	q.cond.Broadcast()
}
