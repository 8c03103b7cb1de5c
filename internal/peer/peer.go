// Package peer wires the membership engine, ring view, KV coordinator,
// KV replica and stabilization protocol behind a single per-tick
// entrypoint: one shared mailbox drained once, then each subsystem
// advanced in dependency order (membership, then ring view, then the
// KV layers stacked on top of it).
package peer

import (
	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/kv"
	"github.com/mcastellin/distkv/internal/membership"
	"github.com/mcastellin/distkv/internal/network"
	"github.com/mcastellin/distkv/internal/ring"
	"github.com/mcastellin/distkv/internal/wire"
)

// Peer is one simulated cluster member: a membership engine, ring view,
// KV coordinator and KV replica sharing a single network.Shim mailbox.
type Peer struct {
	self  address.Address
	shim  *network.Shim
	Mem   *membership.Engine
	Ring  *ring.Ring
	Coord *kv.Coordinator
	Repl  *kv.Replica
}

// New creates a Peer bound to self, sending and receiving over bus.
func New(self address.Address, bus *network.Bus, log eventlog.Logger) *Peer {
	shim := network.NewShim(bus, self)
	return &Peer{
		self:  self,
		shim:  shim,
		Mem:   membership.New(self, shim, log),
		Ring:  ring.New(),
		Coord: kv.NewCoordinator(self, shim, log),
		Repl:  kv.NewReplica(self, shim, log),
	}
}

// Self returns this peer's address.
func (p *Peer) Self() address.Address {
	return p.self
}

// Join starts the membership handshake against introducer.
func (p *Peer) Join(introducer address.Address) {
	p.Mem.Start(introducer)
}

// Tick advances the peer by one local tick: drain the shared mailbox,
// advance membership (evict, then dispatch membership frames while
// routing KV frames to the coordinator/replica, then
// heartbeat+broadcast), rebuild the ring and detect change, advance the
// KV coordinator's timeouts/quorum, and on ring change re-plant locally
// held keys via stabilization.
func (p *Peer) Tick(now int64) {
	frames := p.shim.Drain()

	if p.Mem.InGroup() {
		p.Mem.Evict(now)
	}

	for _, f := range frames {
		msg, err := wire.Decode(f)
		if err != nil {
			continue
		}
		p.route(msg, now)
	}

	p.Mem.Advance()

	changed := false
	if p.Mem.InGroup() {
		changed = p.Ring.Rebuild(p.Mem.Snapshot())
	}

	if p.Mem.InGroup() {
		p.Coord.CheckTransactions(now)
	}

	if changed {
		kv.Stabilize(p.self, p.shim, p.Repl.Store(), p.Ring)
	}
}

func (p *Peer) route(msg wire.Message, now int64) {
	switch msg.Type {
	case wire.JoinReq, wire.JoinRep, wire.Ping:
		p.Mem.HandleMessage(msg, now)
	case wire.Create, wire.Read, wire.Update, wire.Delete:
		p.Repl.Handle(msg)
	case wire.Reply, wire.ReadReply:
		p.Coord.OnReply(msg)
	}
}

// ClientCreate, ClientRead, ClientUpdate and ClientDelete dispatch a
// client CRUD request against the current ring view, returning the
// allocated transaction id.
func (p *Peer) ClientCreate(now int64, key, value string) int32 {
	return p.Coord.ClientCreate(p.Ring, now, key, value)
}

func (p *Peer) ClientRead(now int64, key string) int32 {
	return p.Coord.ClientRead(p.Ring, now, key)
}

func (p *Peer) ClientUpdate(now int64, key, value string) int32 {
	return p.Coord.ClientUpdate(p.Ring, now, key, value)
}

func (p *Peer) ClientDelete(now int64, key string) int32 {
	return p.Coord.ClientDelete(p.Ring, now, key)
}

// Kill simulates a hard node failure: the peer stops receiving any
// further traffic, exactly as if its process had crashed.
func (p *Peer) Kill() {
	p.shim.Close()
}
