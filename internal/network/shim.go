// Package network implements the emulated packet network distkv peers
// communicate over: a fire-and-forget Send plus a per-peer Drain, with
// no delivery or ordering guarantees. Lost packets are silent; neither
// sender nor receiver is notified of a drop.
package network

import (
	"math/rand"
	"sync"

	"github.com/mcastellin/distkv/internal/address"
)

// Bus is a process-wide, in-memory packet network. Every registered
// peer gets its own inbound queue; Send enqueues to the destination's
// queue (or silently drops it if the destination isn't registered, or
// at random if DropRate is set), and Drain atomically empties the
// calling peer's queue.
//
// No retransmission happens at this layer: duplicates are never
// manufactured here, and nothing upstream is notified of a drop.
type Bus struct {
	mu       sync.Mutex
	queues   map[address.Address]*[][]byte
	DropRate float64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{queues: map[address.Address]*[][]byte{}}
}

// Register allocates an inbound queue for addr. Sends to an
// unregistered address are silently dropped, same as any other lost
// packet.
func (b *Bus) Register(addr address.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[addr]; !ok {
		q := make([][]byte, 0)
		b.queues[addr] = &q
	}
}

// Unregister removes addr's inbound queue, simulating a failed/departed
// peer: further sends to it are dropped.
func (b *Bus) Unregister(addr address.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, addr)
}

// Send enqueues payload for delivery to to. from is accepted for
// call-site symmetry; the bus does not use it for routing.
func (b *Bus) Send(from, to address.Address, payload []byte) {
	_ = from
	if b.DropRate > 0 && rand.Float64() < b.DropRate {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[to]
	if !ok {
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	*q = append(*q, cp)
}

// Drain returns and clears every frame enqueued for addr since the last
// Drain call. Returns nil if addr isn't registered.
func (b *Bus) Drain(addr address.Address) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[addr]
	if !ok {
		return nil
	}
	out := *q
	*q = make([][]byte, 0)
	return out
}

// Shim is the per-peer handle a Peer uses to talk to the Bus.
type Shim struct {
	Self address.Address
	bus  *Bus
}

// NewShim registers addr on bus and returns a handle bound to it.
func NewShim(bus *Bus, addr address.Address) *Shim {
	bus.Register(addr)
	return &Shim{Self: addr, bus: bus}
}

// Send is fire-and-forget; no error is ever returned because none of the
// failure modes (lost packet, unknown destination) are observable to
// the caller.
func (s *Shim) Send(to address.Address, payload []byte) {
	s.bus.Send(s.Self, to, payload)
}

// Drain returns every frame delivered to this peer since the last Drain.
func (s *Shim) Drain() [][]byte {
	return s.bus.Drain(s.Self)
}

// Close unregisters the peer from the bus, simulating node failure.
func (s *Shim) Close() {
	s.bus.Unregister(s.Self)
}
