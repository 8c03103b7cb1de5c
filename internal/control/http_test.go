package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcastellin/distkv/internal/address"
)

// fakeView is a minimal ClusterView double so the HTTP routes can be
// exercised without standing up a real simulated cluster.
type fakeView struct {
	peers []PeerView
	rings map[address.Address][]RingNodeView
	txs   map[address.Address][]TransactionView
}

func (f *fakeView) Peers() []PeerView { return f.peers }
func (f *fakeView) RingView(self address.Address) []RingNodeView {
	return f.rings[self]
}
func (f *fakeView) Transactions(self address.Address) []TransactionView {
	return f.txs[self]
}

func TestHandlePeersReturnsViewSnapshot(t *testing.T) {
	self := address.New(1, 0)
	view := &fakeView{peers: []PeerView{{Addr: self, InGroup: true, Known: 3}}}
	srv := NewServer(":0", view, NewHub())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/peers")
	if err != nil {
		t.Fatalf("GET /peers: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got []PeerView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || !got[0].Addr.Equal(self) || !got[0].InGroup || got[0].Known != 3 {
		t.Fatalf("unexpected peers payload: %+v", got)
	}
}

func TestHandleRingParsesAddressAndReturnsView(t *testing.T) {
	self := address.New(2, 9001)
	view := &fakeView{rings: map[address.Address][]RingNodeView{
		self: {{Addr: self, Hash: 42}},
	}}
	srv := NewServer(":0", view, NewHub())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ring/" + self.String())
	if err != nil {
		t.Fatalf("GET /ring: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got []RingNodeView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Hash != 42 {
		t.Fatalf("unexpected ring payload: %+v", got)
	}
}

func TestHandleRingRejectsMalformedAddress(t *testing.T) {
	srv := NewServer(":0", &fakeView{}, NewHub())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ring/not-an-address")
	if err != nil {
		t.Fatalf("GET /ring: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed address, got %d", resp.StatusCode)
	}
}

func TestHandleTransactionsReturnsViewSnapshot(t *testing.T) {
	self := address.New(3, 0)
	view := &fakeView{txs: map[address.Address][]TransactionView{
		self: {{ID: 1, Kind: "CREATE", Key: "k", Replies: 2, Successes: 2, Logged: true}},
	}}
	srv := NewServer(":0", view, NewHub())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/transactions/" + self.String())
	if err != nil {
		t.Fatalf("GET /transactions: %v", err)
	}
	defer resp.Body.Close()

	var got []TransactionView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 || !got[0].Logged {
		t.Fatalf("unexpected transactions payload: %+v", got)
	}
}
