package host

import (
	"testing"

	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
)

func newTestCluster(t *testing.T, n int) (*Host, *eventlog.Recorder) {
	t.Helper()
	rec := eventlog.NewRecorder()
	h := New(rec)
	for i := 0; i < n; i++ {
		h.Spawn(address.New(uint32(i+1), 0), address.Introducer)
	}
	return h, rec
}

func settle(h *Host, n int) {
	for i := 0; i < n; i++ {
		h.Tick()
	}
}

func TestHostBootstrapsAndTicksInGroup(t *testing.T) {
	h, _ := newTestCluster(t, 5)
	settle(h, 6)

	for _, pv := range h.Peers() {
		if !pv.InGroup {
			t.Fatalf("expected peer %v in_group after settling", pv.Addr)
		}
	}
}

func TestHostClientCreateThenRead(t *testing.T) {
	h, rec := newTestCluster(t, 6)
	settle(h, 6)

	coordinator := h.Addresses()[0]
	createTx, ok := h.ClientCreate(coordinator, "k", "v")
	if !ok {
		t.Fatalf("expected ClientCreate against a live coordinator to succeed")
	}
	settle(h, 3)

	readTx, ok := h.ClientRead(coordinator, "k")
	if !ok {
		t.Fatalf("expected ClientRead against a live coordinator to succeed")
	}
	settle(h, 3)

	readOK := false
	for _, ev := range rec.All() {
		if ev.Kind == "readSuccess" && ev.TransID == readTx && ev.Value == "v" {
			readOK = true
		}
	}
	if !readOK {
		t.Fatalf("expected read of key created in tx %d to succeed", createTx)
	}
}

func TestHostClientCallAgainstUnknownPeerFails(t *testing.T) {
	h, _ := newTestCluster(t, 3)
	unknown := address.New(999, 0)
	if _, ok := h.ClientCreate(unknown, "k", "v"); ok {
		t.Fatalf("expected ClientCreate against an unregistered peer to report failure")
	}
}

func TestHostKillRemovesPeerFromDrivenSet(t *testing.T) {
	h, _ := newTestCluster(t, 4)
	settle(h, 6)

	victim := h.Addresses()[1]
	if !h.Kill(victim) {
		t.Fatalf("expected Kill of a live peer to report success")
	}
	if h.Peer(victim) != nil {
		t.Fatalf("expected killed peer to no longer be addressable")
	}
	for _, a := range h.Addresses() {
		if a.Equal(victim) {
			t.Fatalf("expected killed peer excluded from driven address set")
		}
	}
}

func TestHostReviveRejoinsAsFreshPeer(t *testing.T) {
	h, _ := newTestCluster(t, 4)
	settle(h, 6)

	victim := h.Addresses()[1]
	h.Kill(victim)
	settle(h, 25) // > T_REMOVE so survivors evict the victim first

	revived := h.Revive(victim, address.Introducer)
	if revived == nil {
		t.Fatalf("expected Revive to return a new peer")
	}
	settle(h, 6)

	if p := h.Peer(victim); p == nil || !p.Mem.InGroup() {
		t.Fatalf("expected revived peer to rejoin the group")
	}
}

func TestClusterViewReportsRingAndTransactions(t *testing.T) {
	h, _ := newTestCluster(t, 6)
	settle(h, 6)

	coordinator := h.Addresses()[0]
	txID, _ := h.ClientCreate(coordinator, "k", "v")
	settle(h, 3)

	ring := h.RingView(coordinator)
	if len(ring) != 6 {
		t.Fatalf("expected ring view with 6 nodes, got %d", len(ring))
	}

	found := false
	for _, tv := range h.Transactions(coordinator) {
		if tv.ID == txID {
			found = true
			if !tv.Logged {
				t.Fatalf("expected transaction %d logged after settling", txID)
			}
		}
	}
	if !found {
		t.Fatalf("expected transaction %d visible in the control-plane view", txID)
	}
}
