// Package block implements the single log entry in the chain: a
// content-addressed, SHA-256-linked record with a bounded data payload.
package block

import (
	"bytes"
	"fmt"
	"time"

	"github.com/minnehack/checkchain/pkg/chainhash"
)

// MaxDataLen is the hard cap on a block's data payload, in bytes.
const MaxDataLen = 255

// Block is one entry in the chain.
type Block struct {
	Index     uint64
	PrevHash  chainhash.Hash
	Timestamp uint64
	Data      []byte
	Hash      chainhash.Hash
}

// New constructs a block and computes its hash. It panics if data exceeds
// MaxDataLen — an oversized payload reaching this far is a programmer
// error (callers must enforce the cap before this point), not an
// environmental fault.
func New(index uint64, prevHash chainhash.Hash, timestamp uint64, data []byte) Block {
	if len(data) > MaxDataLen {
		panic(fmt.Sprintf("block: data has %d bytes, max %d", len(data), MaxDataLen))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return Block{
		Index:     index,
		PrevHash:  prevHash,
		Timestamp: timestamp,
		Data:      buf,
		Hash:      hashBlock(index, prevHash, timestamp, buf),
	}
}

// hashBlock computes SHA-256 over the canonical preimage
// index(8 LE) ‖ prev_hash(32) ‖ timestamp(8 LE) ‖ data — never including
// the block's own hash field.
func hashBlock(index uint64, prevHash chainhash.Hash, timestamp uint64, data []byte) chainhash.Hash {
	buf := make([]byte, 0, 8+chainhash.Size+8+len(data))
	var tmp [8]byte
	le := func(v uint64) []byte {
		tmp[0] = byte(v)
		tmp[1] = byte(v >> 8)
		tmp[2] = byte(v >> 16)
		tmp[3] = byte(v >> 24)
		tmp[4] = byte(v >> 32)
		tmp[5] = byte(v >> 40)
		tmp[6] = byte(v >> 48)
		tmp[7] = byte(v >> 56)
		return tmp[:]
	}
	buf = append(buf, le(index)...)
	buf = append(buf, prevHash[:]...)
	buf = append(buf, le(timestamp)...)
	buf = append(buf, data...)
	return chainhash.Sum(buf)
}

// Create returns a child of b with the given data, timestamped now.
func (b Block) Create(data []byte) Block {
	return b.CreateAt(uint64(time.Now().Unix()), data)
}

// CreateAt returns a child of b with the given timestamp and data. Used by
// the deterministic merge operator and by tests that need reproducible
// timestamps.
func (b Block) CreateAt(timestamp uint64, data []byte) Block {
	return New(b.Index+1, b.Hash, timestamp, data)
}

// IsValid reports whether b's hash is internally consistent.
func (b Block) IsValid() bool {
	return hashBlock(b.Index, b.PrevHash, b.Timestamp, b.Data) == b.Hash
}

// ValidNext reports whether next is a valid successor of b.
func (b Block) ValidNext(next Block) bool {
	if b.Index+1 != next.Index {
		return false
	}
	if b.Hash != next.PrevHash {
		return false
	}
	return next.IsValid()
}

// Equal reports whether a and b have identical fields.
func Equal(a, b Block) bool {
	return a.Index == b.Index &&
		a.PrevHash == b.PrevHash &&
		a.Timestamp == b.Timestamp &&
		a.Hash == b.Hash &&
		bytes.Equal(a.Data, b.Data)
}

// Less implements the total ordering used as a fork-resolution tie-break:
// lexicographic on (index, prev_hash, timestamp, hash, data). Any total
// order stable across nodes would do; this one is canonical so every peer
// agrees on it.
func Less(a, b Block) bool {
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	if c := bytes.Compare(a.PrevHash[:], b.PrevHash[:]); c != 0 {
		return c < 0
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.Data, b.Data) < 0
}

// LessOrEqual reports whether a sorts before or equal to b under Less's
// ordering. Used by the merge operator, which treats equal blocks as
// "left is less" (a stable tie-break, though equal divergent blocks don't
// occur in well-formed forks).
func LessOrEqual(a, b Block) bool {
	return !Less(b, a)
}
