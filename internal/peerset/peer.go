// Package peerset implements the per-address peer record, its state
// machine, and the karma-based cooldown counter.
package peerset

import (
	"fmt"
	"net"
	"sync"

	"github.com/minnehack/checkchain/pkg/chainhash"
)

// State is a peer's position in the handshake/trust state machine.
type State int

const (
	// Speculative is the state of a peer known only by address, not yet
	// confirmed to speak the protocol.
	Speculative State = iota
	// Existent means the peer replied to a Ping; we've asked for its status.
	Existent
	// Confirmed means the peer's genesis matched ours and it has advertised
	// a tip.
	Confirmed
	// Ignore is a terminal sink for peers whose genesis differs from ours.
	Ignore
)

func (s State) String() string {
	switch s {
	case Speculative:
		return "speculative"
	case Existent:
		return "existent"
	case Confirmed:
		return "confirmed"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Peer is one entry in the table, keyed externally by its address string.
type Peer struct {
	Addr     net.UDPAddr
	Karma    int
	State    State
	TipIndex uint64
	TipHash  chainhash.Hash
}

// SameBlockchain reports whether this peer is Confirmed, the only state
// in which we trust its tip enough to broadcast blocks to it.
func (p Peer) SameBlockchain() bool {
	return p.State == Confirmed
}

// Key returns the canonical map key for an address: its string form,
// which is unique per (ip, port) pair regardless of family.
func Key(addr net.UDPAddr) string {
	return addr.String()
}

// Table is the peer map, guarded by a single lock per the node's locking
// discipline (never held at the same time as the chain lock, except where
// the orchestrator explicitly drops it first).
type Table struct {
	mu      sync.RWMutex
	maxKarma int
	peers   map[string]*Peer
}

// NewTable returns an empty table with the given karma ceiling.
func NewTable(maxKarma int) *Table {
	return &Table{maxKarma: maxKarma, peers: make(map[string]*Peer)}
}

// GetOrCreate returns the peer at addr, creating it in Speculative state
// if this is the first time we've seen it. The second return value
// reports whether the peer was newly created.
func (t *Table) GetOrCreate(addr net.UDPAddr) (*Peer, bool) {
	key := Key(addr)

	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.peers[key]; ok {
		return p, false
	}
	p := &Peer{Addr: addr, State: Speculative}
	t.peers[key] = p
	return p, true
}

// Get returns the peer at addr, if known.
func (t *Table) Get(addr net.UDPAddr) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[Key(addr)]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// OnReceive decrements the peer's karma (saturating at 0) to reflect that
// it has spoken to us, creating it in Speculative state first if unseen.
// Returns whether the peer was newly created.
func (t *Table) OnReceive(addr net.UDPAddr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key(addr)
	p, existed := t.peers[key]
	if !existed {
		p = &Peer{Addr: addr, State: Speculative}
		t.peers[key] = p
	}
	if p.Karma > 0 {
		p.Karma--
	}
	return !existed
}

// OnSend increments the peer's karma for every datagram we send it.
// If karma reaches the configured maximum, the peer is demoted back to
// Speculative (it owes us a reply before we trust it further) and the
// caller is told to re-Ping it.
func (t *Table) OnSend(addr net.UDPAddr) (demoted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.peers[Key(addr)]
	if !ok {
		p = &Peer{Addr: addr, State: Speculative}
		t.peers[Key(addr)] = p
	}
	p.Karma++
	if p.Karma >= t.maxKarma {
		p.Karma = t.maxKarma
		if p.State != Speculative {
			p.State = Speculative
			return true
		}
	}
	return false
}

// MarkExistent advances a peer from Speculative to Existent. No-op for
// any other state, per the transition table: Pong received while
// Existent/Confirmed/Ignore causes no change.
func (t *Table) MarkExistent(addr net.UDPAddr) (advanced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[Key(addr)]
	if !ok || p.State != Speculative {
		return false
	}
	p.State = Existent
	return true
}

// MarkConfirmed sets a peer Confirmed with the given tip, regardless of
// its prior state (any state may transition to Confirmed on a matching
// genesis).
func (t *Table) MarkConfirmed(addr net.UDPAddr, tipIndex uint64, tipHash chainhash.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[Key(addr)]
	if !ok {
		p = &Peer{Addr: addr}
		t.peers[Key(addr)] = p
	}
	p.State = Confirmed
	p.TipIndex = tipIndex
	p.TipHash = tipHash
}

// MarkIgnore sets a peer Ignore, a terminal sink for genesis mismatch.
func (t *Table) MarkIgnore(addr net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[Key(addr)]
	if !ok {
		p = &Peer{Addr: addr}
		t.peers[Key(addr)] = p
	}
	p.State = Ignore
}

// Snapshot returns a copy of every peer in the table, for read-only use
// by UI collaborators.
func (t *Table) Snapshot() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// ConfirmedPeers returns every peer currently in the Confirmed state.
func (t *Table) ConfirmedPeers() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0)
	for _, p := range t.peers {
		if p.State == Confirmed {
			out = append(out, *p)
		}
	}
	return out
}

// Has reports whether addr already has an entry in the table.
func (t *Table) Has(addr net.UDPAddr) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.peers[Key(addr)]
	return ok
}
