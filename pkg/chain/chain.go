// Package chain implements the ordered, validated log of blocks and the
// deterministic merge operator that reconciles two forked copies.
package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/minnehack/checkchain/pkg/block"
	"github.com/minnehack/checkchain/pkg/chainhash"
)

// DefaultGenesisTimestamp and DefaultGenesisData fix the one genesis block
// every honest node on the network must share.
const DefaultGenesisTimestamp = 1515140055

// DefaultGenesisData is "Hello, world!" as UTF-8 bytes.
var DefaultGenesisData = []byte("Hello, world!")

// DefaultGenesis returns the fixed, deterministic genesis block.
func DefaultGenesis() block.Block {
	return block.New(0, chainhash.Zero, DefaultGenesisTimestamp, DefaultGenesisData)
}

// Status describes a candidate block's relationship to a chain.
type Status int

const (
	// Contained means the block already appears in the chain at that index.
	Contained Status = iota
	// ValidTip means the block is valid to append to the current tip.
	ValidTip
	// PotentiallyValid means the chain is not yet long enough to verify the block.
	PotentiallyValid
	// Invalid means the block is definitely inconsistent with the chain.
	Invalid
)

func (s Status) String() string {
	switch s {
	case Contained:
		return "contained"
	case ValidTip:
		return "valid_tip"
	case PotentiallyValid:
		return "potentially_valid"
	default:
		return "invalid"
	}
}

// Chain is an ordered sequence of blocks rooted at a fixed genesis.
//
// Chain is not safe for concurrent use by itself — callers (the C7
// orchestrator) guard every access with a single mutex, per the locking
// discipline in spec.md §5. Chain does not lock itself so that combine and
// status can be called while the caller already holds that lock.
type Chain struct {
	genesis block.Block
	blocks  []block.Block
}

// New returns a chain containing only the default genesis block.
func New() *Chain {
	return WithGenesis(DefaultGenesis())
}

// WithGenesis returns a chain with the given genesis block. Used by tests
// to build chains with a non-default genesis; g.Index must be 0.
func WithGenesis(g block.Block) *Chain {
	if g.Index != 0 {
		panic("chain: genesis index must be 0")
	}
	return &Chain{genesis: g}
}

// Genesis returns the first block in the chain.
func (c *Chain) Genesis() block.Block {
	return c.genesis
}

// Tip returns the last block in the chain.
func (c *Chain) Tip() block.Block {
	if len(c.blocks) == 0 {
		return c.genesis
	}
	return c.blocks[len(c.blocks)-1]
}

// Len returns the number of blocks in the chain, genesis included.
func (c *Chain) Len() uint64 {
	return uint64(len(c.blocks)) + 1
}

// Index returns the block at the given chain position (0 = genesis).
func (c *Chain) Index(i uint64) block.Block {
	if i == 0 {
		return c.genesis
	}
	return c.blocks[i-1]
}

// All returns every block in the chain, genesis first, in order.
func (c *Chain) All() []block.Block {
	out := make([]block.Block, 0, c.Len())
	out = append(out, c.genesis)
	out = append(out, c.blocks...)
	return out
}

// IsValid reports whether every adjacent pair chains correctly and the
// genesis sits at index 0.
func (c *Chain) IsValid() bool {
	if c.genesis.Index != 0 {
		return false
	}
	prev := c.genesis
	for _, b := range c.blocks {
		if !prev.ValidNext(b) {
			return false
		}
		prev = b
	}
	return true
}

// ValidTip reports whether b can extend the chain right now.
func (c *Chain) ValidTip(b block.Block) bool {
	return c.Tip().ValidNext(b)
}

// Push appends b iff it validly extends the current tip. Returns whether
// it was appended. Pushing the same block twice is the caller's mistake to
// avoid — Push has no idempotence guard.
func (c *Chain) Push(b block.Block) bool {
	if !c.ValidTip(b) {
		return false
	}
	c.blocks = append(c.blocks, b)
	return true
}

// Mine creates and appends a child of the current tip, timestamped now,
// and returns the appended block.
func (c *Chain) Mine(data []byte) block.Block {
	return c.MineAt(uint64(time.Now().Unix()), data)
}

// MineAt creates and appends a child of the current tip with an explicit
// timestamp, required by the deterministic merge and by tests.
func (c *Chain) MineAt(timestamp uint64, data []byte) block.Block {
	b := c.Tip().CreateAt(timestamp, data)
	c.blocks = append(c.blocks, b)
	return b
}

// Status classifies a candidate block's relationship to the chain.
// Asserts c.IsValid() — callers must hold the chain lock and never expose
// an intermediate invalid state.
func (c *Chain) Status(b block.Block) Status {
	if !c.IsValid() {
		panic("chain: Status called on an invalid chain")
	}

	switch {
	case b.Index < c.Len():
		if block.Equal(b, c.Index(b.Index)) {
			return Contained
		}
		return Invalid
	case b.Index == c.Len():
		if c.ValidTip(b) {
			return ValidTip
		}
		return Invalid
	default:
		return PotentiallyValid
	}
}

// FindFork returns the smallest index i ≥ 1 at which c and other diverge,
// or where one ends before the other. Returns (0, false) iff one chain is
// a prefix of the other of equal length (i.e. they are identical).
//
// Both chains must share a genesis and both must be valid; this is a
// precondition enforced by panic, matching the fatal-on-invariant-breach
// policy for programmer errors (spec.md §7).
func (c *Chain) FindFork(other *Chain) (uint64, bool) {
	if !block.Equal(c.genesis, other.genesis) {
		panic("chain: FindFork requires a shared genesis")
	}
	if !c.IsValid() {
		panic("chain: FindFork requires self to be valid")
	}
	if !other.IsValid() {
		panic("chain: FindFork requires other to be valid")
	}

	max := len(c.blocks)
	if len(other.blocks) > max {
		max = len(other.blocks)
	}
	for i := 0; i < max; i++ {
		l, lok := blockAt(c.blocks, i)
		r, rok := blockAt(other.blocks, i)
		switch {
		case lok && rok:
			if !block.Equal(l, r) {
				return uint64(i + 1), true
			}
		case lok != rok:
			return uint64(i + 1), true
		}
	}
	return 0, false
}

func blockAt(blocks []block.Block, i int) (block.Block, bool) {
	if i < 0 || i >= len(blocks) {
		return block.Block{}, false
	}
	return blocks[i], true
}

// Combine deterministically reconciles c and other into one chain,
// preserving every data payload submitted to either input.
//
// Algorithm (spec.md §4.3):
//  1. c and other must share a genesis and both be valid.
//  2. Find the fork point i. If there is none, the chains are identical
//     and a copy of c is returned. A chain that is a strict prefix of the
//     other does have a fork point (where it ends).
//  3. Split off the two divergent suffixes L = c[i:] and R = other[i:].
//  4. Whichever suffix sorts first by block.Less (treating an empty
//     suffix as least) is kept in place at the fork point.
//  5. The other, "losing" suffix is re-mined — same data, same order,
//     fresh timestamps — on top of the kept suffix.
//
// Combine(A, B) == Combine(B, A) for any two valid chains sharing a
// genesis, and every data payload from either input survives into the
// result.
func Combine(c, other *Chain) *Chain {
	if !block.Equal(c.genesis, other.genesis) {
		panic("chain: Combine requires a shared genesis")
	}
	if !c.IsValid() {
		panic("chain: Combine requires c to be valid")
	}
	if !other.IsValid() {
		panic("chain: Combine requires other to be valid")
	}

	i, ok := c.FindFork(other)
	if !ok {
		return &Chain{genesis: c.genesis, blocks: cloneBlocks(c.blocks)}
	}

	idx := int(i) - 1 // blocks[] is 0-indexed from chain position 1
	l := append([]block.Block(nil), c.blocks[idx:]...)
	r := append([]block.Block(nil), other.blocks[idx:]...)

	result := &Chain{genesis: c.genesis, blocks: append([]block.Block(nil), c.blocks[:idx]...)}

	leftIsLess := true // empty ≤ anything
	if len(l) > 0 && len(r) > 0 {
		leftIsLess = block.LessOrEqual(l[0], r[0])
	} else if len(l) == 0 {
		leftIsLess = true
	} else if len(r) == 0 {
		leftIsLess = false
	}

	var kept, losing []block.Block
	if leftIsLess {
		kept, losing = l, r
	} else {
		kept, losing = r, l
	}

	result.blocks = append(result.blocks, kept...)
	for _, b := range losing {
		result.MineAt(uint64(time.Now().Unix()), b.Data)
	}

	return result
}

func cloneBlocks(blocks []block.Block) []block.Block {
	return append([]block.Block(nil), blocks...)
}

// Guarded wraps a Chain with the single mutex the orchestrator uses to
// serialize every access, matching the "chain lock" of spec.md §5.
type Guarded struct {
	mu sync.Mutex
	c  *Chain
}

// NewGuarded returns a Guarded chain containing the default genesis.
func NewGuarded() *Guarded {
	return &Guarded{c: New()}
}

// NewGuardedFrom wraps an existing chain.
func NewGuardedFrom(c *Chain) *Guarded {
	return &Guarded{c: c}
}

// With runs f with exclusive access to the underlying chain. f must not
// block or call back into the Guarded (no re-entrant locking).
func (g *Guarded) With(f func(*Chain)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f(g.c)
}

// WithErr is With for functions that can fail.
func (g *Guarded) WithErr(f func(*Chain) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return f(g.c)
}

// Replace atomically swaps in a new chain (used after Combine).
func (g *Guarded) Replace(c *Chain) {
	g.mu.Lock()
	g.c = c
	g.mu.Unlock()
}

// String implements fmt.Stringer for diagnostics/logging.
func (c *Chain) String() string {
	return fmt.Sprintf("chain(len=%d, tip=%s)", c.Len(), c.Tip().Hash)
}
