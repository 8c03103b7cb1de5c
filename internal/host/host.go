// Package host drives a set of simulated peers: it owns the shared
// network bus, invokes each peer's Tick once per round, routes client
// CRUD calls to a chosen coordinator, and injects node failures and
// revivals. It also exposes the read-only control.ClusterView the
// HTTP/WS control plane serves.
package host

import (
	"sync"

	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/control"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/network"
	"github.com/mcastellin/distkv/internal/peer"
)

// Host owns the shared network.Bus and the set of peers currently being
// driven. Each Peer is a single-threaded state machine; Host itself
// runs from several goroutines (the tick loop, fault injection, the
// control-plane HTTP handlers) and so guards its own bookkeeping with a
// mutex.
type Host struct {
	mu    sync.Mutex
	bus   *network.Bus
	log   eventlog.Logger
	peers map[address.Address]*peer.Peer
	order []address.Address
	now   int64
}

var _ control.ClusterView = (*Host)(nil)

// New creates an empty Host whose peers report events to log.
func New(log eventlog.Logger) *Host {
	return &Host{
		bus:   network.NewBus(),
		log:   log,
		peers: map[address.Address]*peer.Peer{},
	}
}

// Bus exposes the shared network.Bus, mainly so a caller can set its
// DropRate before peers start exchanging traffic.
func (h *Host) Bus() *network.Bus {
	return h.bus
}

// Now returns the last completed tick count.
func (h *Host) Now() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Spawn creates and registers a new peer at addr, joining against
// introducer: addr == introducer marks itself in-group immediately,
// anything else sends JOINREQ and waits.
func (h *Host) Spawn(addr, introducer address.Address) *peer.Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := peer.New(addr, h.bus, h.log)
	p.Join(introducer)
	if _, ok := h.peers[addr]; !ok {
		h.order = append(h.order, addr)
	}
	h.peers[addr] = p
	return p
}

// Tick advances every currently-live peer by one round, in a fixed
// address order so a run's message interleaving is reproducible.
// Concurrency across peers is simulated entirely by this outer loop;
// within a round each peer runs to completion.
func (h *Host) Tick() int64 {
	h.mu.Lock()
	h.now++
	now := h.now
	live := make([]*peer.Peer, 0, len(h.order))
	for _, a := range h.order {
		if p, ok := h.peers[a]; ok {
			live = append(live, p)
		}
	}
	h.mu.Unlock()

	for _, p := range live {
		p.Tick(now)
	}
	return now
}

// Kill simulates a hard node failure: the peer's shim is unregistered
// from the bus so no further sends reach it, and it stops being invoked
// by Tick, exactly as if its process had crashed.
func (h *Host) Kill(addr address.Address) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[addr]
	if !ok {
		return false
	}
	p.Kill()
	delete(h.peers, addr)
	return true
}

// Revive restarts a peer at addr as a fresh process rejoining against
// introducer. Nothing survives a crash: a revived peer starts with
// empty membership, ring and store, exactly like a brand-new join.
func (h *Host) Revive(addr, introducer address.Address) *peer.Peer {
	return h.Spawn(addr, introducer)
}

// Peer returns the live peer at addr, or nil if it's unknown or killed.
func (h *Host) Peer(addr address.Address) *peer.Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peers[addr]
}

// Addresses returns every currently-live peer address, in join order.
func (h *Host) Addresses() []address.Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]address.Address, 0, len(h.order))
	for _, a := range h.order {
		if _, ok := h.peers[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ClientCreate, ClientRead, ClientUpdate and ClientDelete route a
// client CRUD call to the coordinator running on coordinatorAddr.
// coordinatorAddr need not be a replica for key; any live, in-group
// peer can coordinate any key. Reports false if coordinatorAddr names
// no live peer.
func (h *Host) ClientCreate(coordinatorAddr address.Address, key, value string) (int32, bool) {
	h.mu.Lock()
	p, now := h.peers[coordinatorAddr], h.now
	h.mu.Unlock()
	if p == nil {
		return 0, false
	}
	return p.ClientCreate(now, key, value), true
}

func (h *Host) ClientRead(coordinatorAddr address.Address, key string) (int32, bool) {
	h.mu.Lock()
	p, now := h.peers[coordinatorAddr], h.now
	h.mu.Unlock()
	if p == nil {
		return 0, false
	}
	return p.ClientRead(now, key), true
}

func (h *Host) ClientUpdate(coordinatorAddr address.Address, key, value string) (int32, bool) {
	h.mu.Lock()
	p, now := h.peers[coordinatorAddr], h.now
	h.mu.Unlock()
	if p == nil {
		return 0, false
	}
	return p.ClientUpdate(now, key, value), true
}

func (h *Host) ClientDelete(coordinatorAddr address.Address, key string) (int32, bool) {
	h.mu.Lock()
	p, now := h.peers[coordinatorAddr], h.now
	h.mu.Unlock()
	if p == nil {
		return 0, false
	}
	return p.ClientDelete(now, key), true
}

// Peers implements control.ClusterView.
func (h *Host) Peers() []control.PeerView {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]control.PeerView, 0, len(h.order))
	for _, a := range h.order {
		p, ok := h.peers[a]
		if !ok {
			continue
		}
		out = append(out, control.PeerView{
			Addr:     a,
			InGroup:  p.Mem.InGroup(),
			Known:    p.Mem.Table().Len(),
			Instance: p.Mem.Instance().String(),
		})
	}
	return out
}

// RingView implements control.ClusterView: the ring as seen by self.
func (h *Host) RingView(self address.Address) []control.RingNodeView {
	h.mu.Lock()
	p, ok := h.peers[self]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	nodes := p.Ring.Nodes()
	out := make([]control.RingNodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, control.RingNodeView{Addr: n.Addr, Hash: n.Hash})
	}
	return out
}

// Transactions implements control.ClusterView: self's coordinator-side
// transaction table.
func (h *Host) Transactions(self address.Address) []control.TransactionView {
	h.mu.Lock()
	p, ok := h.peers[self]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	txs := p.Coord.Table().All()
	out := make([]control.TransactionView, 0, len(txs))
	for _, tx := range txs {
		out = append(out, control.TransactionView{
			ID:        tx.ID,
			Kind:      tx.Kind.String(),
			Key:       tx.Key,
			Replies:   tx.Replies,
			Successes: tx.Successes,
			Logged:    tx.Logged,
			Trace:     tx.Trace.String(),
		})
	}
	return out
}
