package node

import (
	"net"
	"sync"

	"github.com/minnehack/checkchain/internal/peerset"
	"github.com/minnehack/checkchain/pkg/chain"
	"github.com/minnehack/checkchain/pkg/wire"
)

// syncState tracks, per peer, whether we have an outstanding BlockRequest
// in flight. Only one request is ever outstanding to a given peer at a
// time — a reply (or the peer's next status update) is what triggers the
// next request, rather than firing the whole gap at once.
type syncState struct {
	mu          sync.Mutex
	outstanding map[string]bool
}

func newSyncState() *syncState {
	return &syncState{outstanding: make(map[string]bool)}
}

func (s *syncState) tryStart(addr net.UDPAddr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := peerset.Key(addr)
	if s.outstanding[key] {
		return false
	}
	s.outstanding[key] = true
	return true
}

func (s *syncState) clear(addr net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outstanding, peerset.Key(addr))
}

// trySync requests the next missing block from addr if that peer is
// Confirmed and ahead of our chain, and we don't already have a request
// outstanding to it.
func (n *Node) trySync(addr net.UDPAddr) {
	p, ok := n.peers.Get(addr)
	if !ok || !p.SameBlockchain() {
		return
	}

	var ourLen uint64
	n.chain.With(func(c *chain.Chain) {
		ourLen = c.Len()
	})

	if p.TipIndex+1 <= ourLen {
		return
	}
	if !n.sync.tryStart(addr) {
		return
	}
	n.queue.Push(outbound{Addr: &addr, Msg: wire.NewBlockRequest(ourLen)})
}
