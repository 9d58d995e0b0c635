package node

import (
	"net"
	"testing"

	"github.com/minnehack/checkchain/config"
	"github.com/minnehack/checkchain/internal/peerset"
	"github.com/minnehack/checkchain/pkg/block"
	"github.com/minnehack/checkchain/pkg/chain"
	"github.com/minnehack/checkchain/pkg/wire"
)

func testNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.Default()
	cfg.Peers = nil
	return &Node{
		cfg:   cfg,
		chain: chain.NewGuarded(),
		peers: peerset.NewTable(cfg.MaxKarma),
		queue: newSendQueue(),
		sync:  newSyncState(),
	}
}

func addr(port int) net.UDPAddr {
	return net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func popAll(t *testing.T, q *sendQueue) []outbound {
	t.Helper()
	q.Close()
	var items []outbound
	for {
		item, ok := q.Pop()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

func TestDispatchPingRepliesPong(t *testing.T) {
	n := testNode(t)
	n.dispatch(addr(1), wire.NewPing())

	items := popAll(t, n.queue)
	if len(items) != 1 || items[0].Msg.Kind != wire.Pong {
		t.Fatalf("got %v, want a single Pong", items)
	}
}

func TestDispatchPongFromSpeculativeAdvancesAndAsksStatus(t *testing.T) {
	n := testNode(t)
	a := addr(1)
	n.peers.GetOrCreate(a)

	n.dispatch(a, wire.NewPong())

	p, _ := n.peers.Get(a)
	if p.State != peerset.Existent {
		t.Fatalf("state = %v, want Existent", p.State)
	}
	items := popAll(t, n.queue)
	if len(items) != 1 || items[0].Msg.Kind != wire.StatusRequest {
		t.Fatalf("got %v, want a single StatusRequest", items)
	}
}

func TestDispatchPongFromExistentIsNoop(t *testing.T) {
	n := testNode(t)
	a := addr(1)
	n.peers.GetOrCreate(a)
	n.peers.MarkExistent(a)

	n.dispatch(a, wire.NewPong())

	items := popAll(t, n.queue)
	if len(items) != 0 {
		t.Fatalf("got %v, want no outbound traffic", items)
	}
}

func TestDispatchPeerRequestRespondsWithConfirmedOnly(t *testing.T) {
	n := testNode(t)
	confirmed := addr(2)
	speculative := addr(3)
	n.peers.MarkConfirmed(confirmed, 0, [32]byte{})
	n.peers.GetOrCreate(speculative)

	n.dispatch(addr(1), wire.NewPeerRequest())

	items := popAll(t, n.queue)
	if len(items) != 1 {
		t.Fatalf("got %d replies, want 1", len(items))
	}
	if len(items[0].Msg.Peers) != 1 || items[0].Msg.Peers[0].Port != confirmed.Port {
		t.Fatalf("peers = %v, want only the confirmed peer", items[0].Msg.Peers)
	}
}

func TestDispatchPeerResponseAddsUnknownAndPings(t *testing.T) {
	n := testNode(t)
	known := addr(4)
	n.peers.GetOrCreate(known)
	unknown := addr(5)

	n.dispatch(addr(1), wire.NewPeerResponse([]net.UDPAddr{known, unknown}))

	if !n.peers.Has(unknown) {
		t.Fatal("unknown peer was not added")
	}
	items := popAll(t, n.queue)
	if len(items) != 1 || items[0].Msg.Kind != wire.Ping || items[0].Addr.Port != unknown.Port {
		t.Fatalf("got %v, want a single Ping to the unknown peer", items)
	}
}

func TestDispatchStatusRequestReportsTip(t *testing.T) {
	n := testNode(t)
	var genesisHash, tipHash [32]byte
	n.chain.With(func(c *chain.Chain) {
		c.Mine([]byte("hello"))
		genesisHash = c.Genesis().Hash
		tipHash = c.Tip().Hash
	})

	n.dispatch(addr(1), wire.NewStatusRequest())

	items := popAll(t, n.queue)
	if len(items) != 1 || items[0].Msg.Kind != wire.StatusResponse {
		t.Fatalf("got %v, want a single StatusResponse", items)
	}
	resp := items[0].Msg
	if resp.GenesisHash != genesisHash || resp.TipHash != tipHash || resp.TipIndex != 1 {
		t.Fatalf("response = %+v, want tip index 1 matching the mined chain", resp)
	}
}

func TestDispatchStatusResponseGenesisMismatchIgnoresPeer(t *testing.T) {
	n := testNode(t)
	a := addr(1)

	n.dispatch(a, wire.NewStatusResponse([32]byte{0xff}, 0, [32]byte{}))

	p, ok := n.peers.Get(a)
	if !ok || p.State != peerset.Ignore {
		t.Fatalf("peer state = %+v, want Ignore", p)
	}
}

func TestDispatchStatusResponseMatchingGenesisConfirmsAndSyncs(t *testing.T) {
	n := testNode(t)
	a := addr(1)
	var genesisHash [32]byte
	n.chain.With(func(c *chain.Chain) {
		genesisHash = c.Genesis().Hash
	})

	n.dispatch(a, wire.NewStatusResponse(genesisHash, 5, [32]byte{0xaa}))

	p, ok := n.peers.Get(a)
	if !ok || p.State != peerset.Confirmed || p.TipIndex != 5 {
		t.Fatalf("peer = %+v, want Confirmed at tip 5", p)
	}
	items := popAll(t, n.queue)
	if len(items) != 1 || items[0].Msg.Kind != wire.BlockRequest || items[0].Msg.BlockIndex != 1 {
		t.Fatalf("got %v, want a single BlockRequest for index 1", items)
	}
}

func TestDispatchBlockRequestRespondsWhenHeld(t *testing.T) {
	n := testNode(t)
	n.chain.With(func(c *chain.Chain) { c.Mine([]byte("a")) })

	n.dispatch(addr(1), wire.NewBlockRequest(0))

	items := popAll(t, n.queue)
	if len(items) != 1 || items[0].Msg.Kind != wire.BlockResponse || items[0].Msg.Block.Index != 0 {
		t.Fatalf("got %v, want BlockResponse carrying index 0", items)
	}
}

func TestDispatchBlockRequestSilentWhenMissing(t *testing.T) {
	n := testNode(t)
	n.dispatch(addr(1), wire.NewBlockRequest(5))

	items := popAll(t, n.queue)
	if len(items) != 0 {
		t.Fatalf("got %v, want silence for a block we don't have", items)
	}
}

func TestHandleBlockContainedBlockDoesNotRebroadcast(t *testing.T) {
	n := testNode(t)
	var mined block.Block
	n.chain.With(func(c *chain.Chain) {
		mined = c.Mine([]byte("check-in"))
	})
	n.peers.MarkConfirmed(addr(101), 0, [32]byte{})

	n.handleBlock(mined, true)

	if got := popAll(t, n.queue); len(got) != 0 {
		t.Fatalf("got %v, want no fan-out for a block we already hold", got)
	}
}

func TestHandleBlockValidTipFansOutToPeersNotYetPast(t *testing.T) {
	n := testNode(t)
	var tip block.Block
	n.chain.With(func(c *chain.Chain) {
		c.Mine([]byte("first"))
		tip = c.Tip()
	})

	p1, p5, spec := addr(101), addr(105), addr(106)
	n.peers.MarkConfirmed(p1, 0, [32]byte{})
	n.peers.MarkConfirmed(p5, 5, [32]byte{})
	n.peers.GetOrCreate(spec)

	next := block.New(tip.Index+1, tip.Hash, tip.Timestamp+1, []byte("second"))
	n.handleBlock(next, true)

	var pushed bool
	n.chain.With(func(c *chain.Chain) {
		pushed = c.Len() == 3 && c.Tip().Hash == next.Hash
	})
	if !pushed {
		t.Fatal("ValidTip block was not appended to the chain")
	}

	got := popAll(t, n.queue)
	sawP1, sawP5 := false, false
	for _, item := range got {
		if item.Addr == nil {
			t.Fatalf("fan-out must unicast, got a broadcast entry: %+v", item)
		}
		switch item.Addr.Port {
		case p1.Port:
			sawP1 = true
		case p5.Port:
			sawP5 = true
		case spec.Port:
			t.Fatal("fan-out reached a Speculative peer")
		}
	}
	if !sawP1 {
		t.Fatal("peer behind the new block's index did not receive the announce")
	}
	if sawP5 {
		t.Fatal("peer already past the new block's index received a redundant announce")
	}
}

func TestHandleBlockWithoutBroadcastNeverFansOut(t *testing.T) {
	n := testNode(t)
	var tip block.Block
	n.chain.With(func(c *chain.Chain) {
		c.Mine([]byte("first"))
		tip = c.Tip()
	})
	n.peers.MarkConfirmed(addr(101), 0, [32]byte{})

	next := block.New(tip.Index+1, tip.Hash, tip.Timestamp+1, []byte("second"))
	n.handleBlock(next, false)

	if got := popAll(t, n.queue); len(got) != 0 {
		t.Fatalf("got %v, want no fan-out when broadcast=false", got)
	}
}
