package node

import (
	"net"
	"sync"

	"github.com/minnehack/checkchain/pkg/wire"
)

// outbound is one entry in the send queue: a message and an optional
// destination. A nil Addr means "broadcast to every Confirmed peer".
type outbound struct {
	Addr *net.UDPAddr
	Msg  wire.Message
}

// sendQueue is the orchestrator's multi-producer/multi-consumer FIFO of
// outbound messages. It is unbounded, guarded by a mutex and condition
// variable, and blocks only the consumer (the sender goroutine) when
// empty — there is no fixed-capacity buffer.
type sendQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []outbound
	closed bool
}

func newSendQueue() *sendQueue {
	q := &sendQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an item and wakes one waiting consumer.
func (q *sendQueue) Push(item outbound) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed, in which
// case ok is false.
func (q *sendQueue) Pop() (outbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return outbound{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Close wakes every blocked consumer so shutdown can proceed.
func (q *sendQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
