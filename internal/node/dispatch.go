package node

import (
	"net"

	"github.com/minnehack/checkchain/internal/log"
	"github.com/minnehack/checkchain/pkg/block"
	"github.com/minnehack/checkchain/pkg/chain"
	"github.com/minnehack/checkchain/pkg/chainhash"
	"github.com/minnehack/checkchain/pkg/wire"
)

// dispatch routes one inbound message to its handler. addr is always the
// sender's observed UDP address, never a value taken from the payload.
func (n *Node) dispatch(addr net.UDPAddr, msg wire.Message) {
	switch msg.Kind {
	case wire.Ping:
		n.queue.Push(outbound{Addr: &addr, Msg: wire.NewPong()})

	case wire.Pong:
		if n.peers.MarkExistent(addr) {
			n.queue.Push(outbound{Addr: &addr, Msg: wire.NewStatusRequest()})
		}

	case wire.PeerRequest:
		peers := n.peers.ConfirmedPeers()
		addrs := make([]net.UDPAddr, 0, wire.MaxPeers)
		for _, p := range peers {
			if len(addrs) == wire.MaxPeers {
				break
			}
			addrs = append(addrs, p.Addr)
		}
		n.queue.Push(outbound{Addr: &addr, Msg: wire.NewPeerResponse(addrs)})

	case wire.PeerResponse:
		for _, peerAddr := range msg.Peers {
			if _, created := n.peers.GetOrCreate(peerAddr); created {
				n.queue.Push(outbound{Addr: &peerAddr, Msg: wire.NewPing()})
			}
		}

	case wire.StatusRequest:
		var genesisHash chainhash.Hash
		var tipIndex uint64
		var tipHash chainhash.Hash
		n.chain.With(func(c *chain.Chain) {
			genesisHash = c.Genesis().Hash
			tipIndex = c.Len() - 1
			tipHash = c.Tip().Hash
		})
		n.queue.Push(outbound{Addr: &addr, Msg: wire.NewStatusResponse(genesisHash, tipIndex, tipHash)})

	case wire.StatusResponse:
		var genesisHash chainhash.Hash
		n.chain.With(func(c *chain.Chain) {
			genesisHash = c.Genesis().Hash
		})
		if msg.GenesisHash != genesisHash {
			n.peers.MarkIgnore(addr)
			log.P2P.Debug().Str("addr", addr.String()).Msg("genesis mismatch, ignoring peer")
			return
		}
		n.peers.MarkConfirmed(addr, msg.TipIndex, msg.TipHash)
		n.sync.clear(addr)
		n.trySync(addr)

	case wire.BlockRequest:
		var have bool
		var b block.Block
		n.chain.With(func(c *chain.Chain) {
			if msg.BlockIndex < c.Len() {
				have = true
				b = c.Index(msg.BlockIndex)
			}
		})
		if have {
			n.queue.Push(outbound{Addr: &addr, Msg: wire.NewBlockResponse(b)})
		}

	case wire.BlockResponse:
		n.handleBlock(msg.Block, false)
		n.sync.clear(addr)
		n.trySync(addr)

	case wire.BlockAnnounce:
		n.handleBlock(msg.Block, true)

	default:
		log.P2P.Warn().Str("addr", addr.String()).Msg("unknown message kind")
	}
}

// handleBlock classifies b against the current chain and either appends
// it, silently drops it, or rebroadcasts it to peers that might not have
// it yet. The chain lock is released (With returns) before any peer-table
// access, so a slow or congested send queue never blocks mining.
func (n *Node) handleBlock(b block.Block, broadcast bool) {
	var status chain.Status
	n.chain.With(func(c *chain.Chain) {
		status = c.Status(b)
		if status == chain.ValidTip {
			c.Push(b)
		}
	})

	if !broadcast {
		return
	}
	if status == chain.Contained || status == chain.Invalid {
		return
	}

	for _, p := range n.peers.ConfirmedPeers() {
		if p.TipIndex <= b.Index {
			n.queue.Push(outbound{Addr: &p.Addr, Msg: wire.NewBlockAnnounce(b)})
		}
	}
}
