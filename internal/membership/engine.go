// Package membership implements a SWIM-lite heartbeat gossip protocol:
// a peer table maintained by timeout-based failure detection, a
// JOINREQ/JOINREP join handshake against a fixed introducer, and a
// per-tick PING broadcast carrying a digest of the local table.
// Failure detection is timeout-only; there is no explicit FAIL message
// and no active probing. A peer that goes silent is soft-suspected at
// TFail and evicted at TRemove, independently at each surviving peer.
package membership

import (
	"github.com/rs/xid"

	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/wire"
)

// transport is the subset of network.Shim the engine depends on, kept
// as an interface so tests can substitute a lightweight double.
type transport interface {
	Send(to address.Address, payload []byte)
	Drain() [][]byte
}

// Engine is the membership protocol state machine for a single peer.
type Engine struct {
	self     address.Address
	instance xid.ID

	heartbeat uint64
	inGroup   bool

	table *Table
	// tombstones quarantines recently evicted addresses (addr → eviction
	// tick) so a straggling gossip digest can't resurrect a row the tick
	// after a neighbor evicted it. Entries expire after TRemove; direct
	// contact from the peer itself clears them immediately.
	tombstones map[address.Address]int64
	tr         transport
	log        eventlog.Logger
}

// New creates a membership Engine for self, communicating over tr and
// reporting events to log.
func New(self address.Address, tr transport, log eventlog.Logger) *Engine {
	return &Engine{
		self:       self,
		instance:   xid.New(),
		table:      NewTable(),
		tombstones: map[address.Address]int64{},
		tr:         tr,
		log:        log,
	}
}

// Instance returns this engine's incarnation token, minted once per
// process lifetime so a restarted peer is distinguishable from its
// pre-crash self in control-plane views.
func (e *Engine) Instance() xid.ID {
	return e.instance
}

// InGroup reports whether this peer has completed the join handshake.
func (e *Engine) InGroup() bool {
	return e.inGroup
}

// Heartbeat returns the local peer's current heartbeat value.
func (e *Engine) Heartbeat() uint64 {
	return e.heartbeat
}

// Table exposes the underlying MembershipTable for the ring view to
// read (never to mutate).
func (e *Engine) Table() *Table {
	return e.table
}

// Start bootstraps the join handshake: the introducer marks itself
// in-group immediately, everyone else sends JOINREQ and waits for
// JOINREP.
func (e *Engine) Start(introducer address.Address) {
	if e.self.Equal(introducer) {
		e.inGroup = true
		return
	}
	msg := wire.Message{Type: wire.JoinReq, From: e.self}
	e.tr.Send(introducer, msg.Encode())
}

// Tick advances the engine by one local tick, draining its own
// transport: evict stale rows (in-group only), process inbound
// messages, then increment the local heartbeat and broadcast a PING
// digest to every known peer. Standalone use (tests, membership-only
// simulations); a peer wiring membership and KV over a shared mailbox
// instead composes Evict/HandleMessage/Advance directly so KV frames
// drained from the same queue can be routed elsewhere.
//
// Eviction runs before inbound messages are dispatched, not after. If
// it ran after the merge, a stale PING digest delivered in the same
// tick a row's TRemove deadline expires could recreate the row we're
// about to evict.
func (e *Engine) Tick(now int64) {
	frames := e.tr.Drain()

	if e.inGroup {
		e.Evict(now)
	}

	for _, f := range frames {
		msg, err := wire.Decode(f)
		if err != nil {
			continue
		}
		e.HandleMessage(msg, now)
	}

	e.Advance()
}

// Advance performs the post-dispatch half of a tick: if in-group,
// increment the local heartbeat and broadcast a PING digest. Exposed so
// a peer can interleave membership dispatch with KV message routing
// over a tick that drains both from one shared mailbox.
func (e *Engine) Advance() {
	if !e.inGroup {
		return
	}
	e.heartbeat++
	e.Broadcast()
}

// Snapshot returns the current in-group peer set including self.
func (e *Engine) Snapshot() []address.Address {
	addrs := e.table.Addresses()
	out := make([]address.Address, 0, len(addrs)+1)
	out = append(out, e.self)
	out = append(out, addrs...)
	return out
}

// Evict removes every table row whose state has reached Removed as of
// now, logging each removal and tombstoning the address. Peers evict
// independently, up to a tick or two apart; without the tombstone a
// digest from a neighbor that hasn't evicted yet would recreate the row
// here with last_seen = now, and the entry would bounce between peers
// indefinitely. Expired tombstones are purged in the same pass.
func (e *Engine) Evict(now int64) {
	for _, entry := range e.table.Entries() {
		if entry.StateAt(now) == Removed {
			e.table.Delete(entry.Addr)
			e.tombstones[entry.Addr] = now
			e.log.LogNodeRemove(e.self, entry.Addr)
		}
	}
	for addr, evictedAt := range e.tombstones {
		if now-evictedAt >= TRemove {
			delete(e.tombstones, addr)
		}
	}
}

// HandleMessage dispatches a single decoded membership message
// (JOINREQ/JOINREP/PING); anything else is ignored, since KV frames
// sharing the same mailbox are routed elsewhere by the peer.
func (e *Engine) HandleMessage(msg wire.Message, now int64) {
	switch msg.Type {
	case wire.JoinReq:
		e.handleJoinReq(msg, now)
	case wire.JoinRep:
		e.handleJoinRep(msg, now)
	case wire.Ping:
		e.handlePing(msg, now)
	}
}

// handleJoinReq: the introducer (or any peer reached by a JOINREQ)
// admits the sender with an inferred heartbeat of 1, then replies
// JOINREP carrying its own digest.
func (e *Engine) handleJoinReq(msg wire.Message, now int64) {
	e.admitDirect(msg.From, now)

	reply := wire.Message{
		Type:    wire.JoinRep,
		From:    e.self,
		Digests: e.digestOf(),
	}
	e.tr.Send(msg.From, reply.Encode())
}

// handleJoinRep: the requester joins the group and admits the replier
// directly (inferred heartbeat of 1), then merges the replier's digest
// using the normal admission rule to bootstrap knowledge of the rest of
// the cluster.
func (e *Engine) handleJoinRep(msg wire.Message, now int64) {
	e.inGroup = true
	e.admitDirect(msg.From, now)
	e.mergeDigests(msg.Digests, now)
}

// handlePing: refresh the sender's own row with its carried heartbeat,
// then merge every digest entry using the standard admission rule.
func (e *Engine) handlePing(msg wire.Message, now int64) {
	if row := e.table.Get(msg.From); row != nil {
		if msg.SenderHeartbeat > row.Heartbeat {
			row.Heartbeat = msg.SenderHeartbeat
		}
		row.LastSeen = now
	} else if msg.SenderHeartbeat != 0 {
		// A PING from the peer itself is proof of life, so it clears any
		// tombstone left by an earlier eviction.
		delete(e.tombstones, msg.From)
		e.table.Put(PeerEntry{Addr: msg.From, Heartbeat: msg.SenderHeartbeat, LastSeen: now})
		e.log.LogNodeAdd(e.self, msg.From)
	}
	e.mergeDigests(msg.Digests, now)
}

// admitDirect inserts addr with heartbeat=1 if it isn't already known,
// the JOINREQ/JOINREP direct-admission rule. Never admits self: a peer
// must not hold a row for its own address.
func (e *Engine) admitDirect(addr address.Address, now int64) {
	if addr.Equal(e.self) {
		return
	}
	delete(e.tombstones, addr)
	if e.table.Get(addr) != nil {
		return
	}
	e.table.Put(PeerEntry{Addr: addr, Heartbeat: 1, LastSeen: now})
	e.log.LogNodeAdd(e.self, addr)
}

// mergeDigests applies the gossip digest admission rule: refresh a row
// on a strictly greater heartbeat; create a never-seen row only if the
// digest's heartbeat is non-zero.
// A digest entry equal to self is always skipped, and a tombstoned
// address is never re-admitted by digest; only direct contact from the
// peer itself (JOINREQ, JOINREP or its own PING) can do that.
func (e *Engine) mergeDigests(digests []wire.Digest, now int64) {
	for _, d := range digests {
		addr := address.New(d.ID, d.Port)
		if addr.Equal(e.self) {
			continue
		}
		row := e.table.Get(addr)
		if row != nil {
			if d.Heartbeat > row.Heartbeat {
				row.Heartbeat = d.Heartbeat
				row.LastSeen = now
			}
			continue
		}
		if d.Heartbeat == 0 {
			continue
		}
		if _, quarantined := e.tombstones[addr]; quarantined {
			continue
		}
		e.table.Put(PeerEntry{Addr: addr, Heartbeat: d.Heartbeat, LastSeen: now})
		e.log.LogNodeAdd(e.self, addr)
	}
}

func (e *Engine) digestOf() []wire.Digest {
	entries := e.table.Entries()
	out := make([]wire.Digest, 0, len(entries))
	for _, entry := range entries {
		out = append(out, wire.Digest{ID: entry.Addr.ID, Port: entry.Addr.Port, Heartbeat: entry.Heartbeat})
	}
	return out
}

// Broadcast sends the current table digest, tagged with the current
// heartbeat, as a PING to every known peer.
func (e *Engine) Broadcast() {
	digests := e.digestOf()
	msg := wire.Message{
		Type:            wire.Ping,
		From:            e.self,
		SenderHeartbeat: e.heartbeat,
		Digests:         digests,
	}
	payload := msg.Encode()
	for _, addr := range e.table.Addresses() {
		e.tr.Send(addr, payload)
	}
}
