// Package node implements the client orchestrator: the concurrent glue
// that owns the chain and peer table, drives the protocol timers, and
// routes inbound messages to chain operations.
package node

import (
	"context"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minnehack/checkchain/config"
	"github.com/minnehack/checkchain/internal/log"
	"github.com/minnehack/checkchain/internal/peerset"
	"github.com/minnehack/checkchain/internal/transport"
	"github.com/minnehack/checkchain/pkg/block"
	"github.com/minnehack/checkchain/pkg/chain"
	"github.com/minnehack/checkchain/pkg/wire"
)

// Node owns the chain (one lock) and the peer table (a second, independent
// lock), and drives every long-lived task described for a running client.
// The two locks are never held at the same time; in handleBlock the chain
// lock is explicitly released before the peer lock is taken to enqueue a
// broadcast.
type Node struct {
	cfg   *config.Config
	tr    *transport.Transport
	chain *chain.Guarded
	peers *peerset.Table
	queue *sendQueue
	sync  *syncState
}

// New wires a Node around an already-bound transport and a fresh chain
// and peer table. Seed addresses from cfg.Peers are added Speculative and
// pinged once Run starts.
func New(cfg *config.Config, tr *transport.Transport) *Node {
	return &Node{
		cfg:   cfg,
		tr:    tr,
		chain: chain.NewGuarded(),
		peers: peerset.NewTable(cfg.MaxKarma),
		queue: newSendQueue(),
		sync:  newSyncState(),
	}
}

// WithChain invokes f under the chain lock. f must not block.
func (n *Node) WithChain(f func(*chain.Chain)) {
	n.chain.With(f)
}

// WithPeers invokes f with a peer-table snapshot. The slice is a copy;
// mutating it has no effect on the live table.
func (n *Node) WithPeers(f func([]peerset.Peer)) {
	f(n.peers.Snapshot())
}

// Mine appends data as a new block and announces it to every Confirmed peer.
// Panics if data exceeds block.MaxDataLen — a programmer error upstream,
// per the invariant every collaborator must enforce before calling here.
func (n *Node) Mine(data []byte) block.Block {
	var mined block.Block
	n.chain.With(func(c *chain.Chain) {
		mined = c.Mine(data)
	})
	n.queue.Push(outbound{Addr: nil, Msg: wire.NewBlockAnnounce(mined)})
	return mined
}

// Run starts the five long-lived tasks and blocks until ctx is cancelled
// or one of them returns an error. userHook, if non-nil, is run as the
// fifth task under the same group — it is the seam collaborators (a
// terminal reader, an HTTP server) use to inject work without the
// orchestrator knowing anything about them.
func (n *Node) Run(ctx context.Context, userHook func(context.Context, *Node) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		n.queue.Close()
		n.tr.Close()
		return nil
	})

	g.Go(func() error { return n.seedPeers() })
	g.Go(func() error { return n.senderLoop(gctx) })
	g.Go(func() error { return n.receiverLoop(gctx) })
	g.Go(func() error { return n.discoveryLoop(gctx) })
	g.Go(func() error { return n.statusLoop(gctx) })

	if userHook != nil {
		g.Go(func() error { return userHook(gctx, n) })
	}

	return g.Wait()
}

// seedPeers adds every address in cfg.Peers to the table as Speculative
// and pings it, mirroring what happens on first inbound contact.
func (n *Node) seedPeers() error {
	for _, raw := range n.cfg.Peers {
		addr, err := net.ResolveUDPAddr("udp", raw)
		if err != nil {
			log.Warn().Err(err).Str("addr", raw).Msg("skipping unparsable seed peer")
			continue
		}
		n.peers.GetOrCreate(*addr)
		n.queue.Push(outbound{Addr: addr, Msg: wire.NewPing()})
	}
	return nil
}

func (n *Node) senderLoop(ctx context.Context) error {
	for {
		item, ok := n.queue.Pop()
		if !ok {
			return nil
		}
		if item.Addr != nil {
			n.unicast(*item.Addr, item.Msg)
			continue
		}
		for _, p := range n.peers.Snapshot() {
			if p.SameBlockchain() {
				n.unicast(p.Addr, item.Msg)
			}
		}
	}
}

func (n *Node) unicast(addr net.UDPAddr, msg wire.Message) {
	if err := n.tr.Send(addr, msg); err != nil {
		log.P2P.Warn().Err(err).Str("addr", addr.String()).Msg("send failed")
		return
	}
	if demoted := n.peers.OnSend(addr); demoted {
		n.queue.Push(outbound{Addr: &addr, Msg: wire.NewPing()})
	}
}

func (n *Node) receiverLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		addr, msg, err := n.tr.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.P2P.Warn().Err(err).Msg("recv failed")
			continue
		}
		n.onReceive(addr, msg)
	}
}

// onReceive ensures a peer record exists, charges karma for the inbound
// datagram, and dispatches by message kind.
func (n *Node) onReceive(addr net.UDPAddr, msg wire.Message) {
	if isNew := n.peers.OnReceive(addr); isNew {
		n.queue.Push(outbound{Addr: &addr, Msg: wire.NewPing()})
	}
	n.dispatch(addr, msg)
}

func (n *Node) discoveryLoop(ctx context.Context) error {
	pingInterval := time.Duration(n.cfg.DiscoveryPingInterval) * time.Second
	peerInterval := time.Duration(n.cfg.DiscoveryPeerInterval) * time.Second
	pingTicker := time.NewTicker(pingInterval)
	peerTicker := time.NewTicker(peerInterval)
	defer pingTicker.Stop()
	defer peerTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pingTicker.C:
			if err := n.tr.SendDiscovery(); err != nil {
				log.P2P.Warn().Err(err).Msg("discovery broadcast failed")
			}
		case <-peerTicker.C:
			n.queue.Push(outbound{Addr: nil, Msg: wire.NewPeerRequest()})
		}
	}
}

func (n *Node) statusLoop(ctx context.Context) error {
	interval := time.Duration(n.cfg.StatusCheckInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.queue.Push(outbound{Addr: nil, Msg: wire.NewStatusRequest()})
		}
	}
}
