package peerset

import (
	"net"
	"testing"

	"github.com/minnehack/checkchain/pkg/chainhash"
)

func addr(port int) net.UDPAddr {
	return net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func TestGetOrCreateStartsSpeculative(t *testing.T) {
	tbl := NewTable(10)
	p, created := tbl.GetOrCreate(addr(1))
	if !created {
		t.Fatal("expected created = true for a new address")
	}
	if p.State != Speculative {
		t.Fatalf("new peer state = %v, want Speculative", p.State)
	}

	_, created = tbl.GetOrCreate(addr(1))
	if created {
		t.Fatal("expected created = false for an already-known address")
	}
}

func TestMarkExistentOnlyFromSpeculative(t *testing.T) {
	tbl := NewTable(10)
	tbl.GetOrCreate(addr(1))

	if !tbl.MarkExistent(addr(1)) {
		t.Fatal("expected MarkExistent to advance a Speculative peer")
	}
	p, _ := tbl.Get(addr(1))
	if p.State != Existent {
		t.Fatalf("state = %v, want Existent", p.State)
	}

	if tbl.MarkExistent(addr(1)) {
		t.Fatal("MarkExistent should be a no-op once already Existent")
	}
}

func TestMarkConfirmedSetsTip(t *testing.T) {
	tbl := NewTable(10)
	tbl.GetOrCreate(addr(1))
	tbl.MarkExistent(addr(1))

	th := chainhash.Sum([]byte("tip"))
	tbl.MarkConfirmed(addr(1), 5, th)

	p, _ := tbl.Get(addr(1))
	if p.State != Confirmed {
		t.Fatalf("state = %v, want Confirmed", p.State)
	}
	if p.TipIndex != 5 || p.TipHash != th {
		t.Fatalf("tip = (%d, %s), want (5, %s)", p.TipIndex, p.TipHash, th)
	}
	if !p.SameBlockchain() {
		t.Fatal("Confirmed peer should report SameBlockchain() = true")
	}
}

func TestMarkIgnoreIsTerminal(t *testing.T) {
	tbl := NewTable(10)
	tbl.GetOrCreate(addr(1))
	tbl.MarkIgnore(addr(1))

	p, _ := tbl.Get(addr(1))
	if p.State != Ignore {
		t.Fatalf("state = %v, want Ignore", p.State)
	}
}

func TestOnReceiveDecrementsSaturatingAtZero(t *testing.T) {
	tbl := NewTable(10)
	tbl.GetOrCreate(addr(1))

	tbl.OnReceive(addr(1))
	p, _ := tbl.Get(addr(1))
	if p.Karma != 0 {
		t.Fatalf("karma = %d, want 0 (saturated)", p.Karma)
	}

	for i := 0; i < 5; i++ {
		tbl.OnSend(addr(1))
	}
	tbl.OnReceive(addr(1))
	p, _ = tbl.Get(addr(1))
	if p.Karma != 4 {
		t.Fatalf("karma = %d, want 4", p.Karma)
	}
}

func TestOnSendDemotesAtMaxKarma(t *testing.T) {
	tbl := NewTable(3)
	tbl.GetOrCreate(addr(1))
	tbl.MarkExistent(addr(1))

	tbl.OnSend(addr(1))
	tbl.OnSend(addr(1))
	demoted := tbl.OnSend(addr(1))

	if !demoted {
		t.Fatal("expected demotion once karma hits the max")
	}
	p, _ := tbl.Get(addr(1))
	if p.State != Speculative {
		t.Fatalf("state = %v, want Speculative after demotion", p.State)
	}
}

func TestOnSendCreatesAbsentPeer(t *testing.T) {
	tbl := NewTable(10)
	tbl.OnSend(addr(1))
	if !tbl.Has(addr(1)) {
		t.Fatal("OnSend should create a peer record if absent")
	}
}

func TestConfirmedPeersFiltersState(t *testing.T) {
	tbl := NewTable(10)
	tbl.GetOrCreate(addr(1))
	tbl.GetOrCreate(addr(2))
	tbl.MarkConfirmed(addr(1), 0, chainhash.Sum(nil))

	confirmed := tbl.ConfirmedPeers()
	if len(confirmed) != 1 {
		t.Fatalf("got %d confirmed peers, want 1", len(confirmed))
	}
	if confirmed[0].Addr.Port != 1 {
		t.Fatalf("confirmed peer port = %d, want 1", confirmed[0].Addr.Port)
	}
}

func TestSnapshotReturnsAllPeers(t *testing.T) {
	tbl := NewTable(10)
	tbl.GetOrCreate(addr(1))
	tbl.GetOrCreate(addr(2))
	if got := len(tbl.Snapshot()); got != 2 {
		t.Fatalf("Snapshot returned %d peers, want 2", got)
	}
}
