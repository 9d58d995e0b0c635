// Package wire implements the byte-exact binary format shared by every
// node: block serialization and the tagged protocol messages that travel
// inside a single UDP datagram.
package wire

import (
	"errors"
	"fmt"
	"net"

	"github.com/minnehack/checkchain/pkg/block"
	"github.com/minnehack/checkchain/pkg/chainhash"
)

// Kind identifies the message variant carried by a datagram.
type Kind uint8

const (
	Ping Kind = iota
	Pong
	PeerRequest
	PeerResponse
	StatusRequest
	StatusResponse
	BlockRequest
	BlockResponse
	BlockAnnounce
)

func (k Kind) String() string {
	switch k {
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case PeerRequest:
		return "peer_request"
	case PeerResponse:
		return "peer_response"
	case StatusRequest:
		return "status_request"
	case StatusResponse:
		return "status_response"
	case BlockRequest:
		return "block_request"
	case BlockResponse:
		return "block_response"
	case BlockAnnounce:
		return "block_announce"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MaxPeers is the hard cap on addresses carried by a single PeerResponse.
const MaxPeers = 8

// ErrInvalidPacket is returned for any datagram that fails to decode —
// unknown tag, truncated payload, trailing bytes, or an oversized count.
var ErrInvalidPacket = errors.New("wire: invalid packet")

// Message is the union of every protocol message. Only the fields
// relevant to Kind are populated; callers read the field documented for
// that Kind and ignore the rest.
type Message struct {
	Kind Kind

	// PeerRequest: none. PeerResponse:
	Peers []net.UDPAddr

	// StatusRequest: none. StatusResponse:
	GenesisHash chainhash.Hash
	TipIndex    uint64
	TipHash     chainhash.Hash

	// BlockRequest:
	BlockIndex uint64

	// BlockResponse, BlockAnnounce:
	Block block.Block
}

// NewPing, NewPong, ... are small convenience constructors used by callers
// that only ever set Kind and nothing else.
func NewPing() Message           { return Message{Kind: Ping} }
func NewPong() Message           { return Message{Kind: Pong} }
func NewPeerRequest() Message    { return Message{Kind: PeerRequest} }
func NewStatusRequest() Message  { return Message{Kind: StatusRequest} }

// NewPeerResponse returns a PeerResponse carrying peers, which must number
// at most MaxPeers.
func NewPeerResponse(peers []net.UDPAddr) Message {
	return Message{Kind: PeerResponse, Peers: peers}
}

// NewStatusResponse returns a StatusResponse with the given chain summary.
func NewStatusResponse(genesisHash chainhash.Hash, tipIndex uint64, tipHash chainhash.Hash) Message {
	return Message{Kind: StatusResponse, GenesisHash: genesisHash, TipIndex: tipIndex, TipHash: tipHash}
}

// NewBlockRequest returns a BlockRequest for the block at index i.
func NewBlockRequest(i uint64) Message {
	return Message{Kind: BlockRequest, BlockIndex: i}
}

// NewBlockResponse returns a BlockResponse carrying b.
func NewBlockResponse(b block.Block) Message {
	return Message{Kind: BlockResponse, Block: b}
}

// NewBlockAnnounce returns a BlockAnnounce carrying b.
func NewBlockAnnounce(b block.Block) Message {
	return Message{Kind: BlockAnnounce, Block: b}
}
