// Package ring implements the consistent-hash view over the live peer
// set: it derives an ordered ring from a membership snapshot and
// answers "which three peers replicate key K?". Peers and keys share
// one hash function, so a key's replicas are the first ring node at or
// past the key's hash plus its next two successors, wrapping around.
package ring

import (
	"hash/fnv"
	"sort"

	"github.com/mcastellin/distkv/internal/address"
)

// RingSize is the hash-space modulus: 2^32 positions.
const RingSize uint64 = 1 << 32

// ReplicationFactor is the number of consecutive ring successors each
// key lives on.
const ReplicationFactor = 3

// Node is a single ring position: a peer address and its stable hash.
type Node struct {
	Addr address.Address
	Hash uint64
}

// HashAddress computes a RingSize-bounded stable hash of an address,
// the same function used to place both peers and keys on the ring.
func HashAddress(a address.Address) uint64 {
	buf := make([]byte, address.Size)
	a.Encode(buf)
	return hashBytes(buf)
}

// HashKey computes a RingSize-bounded stable hash of a string key.
func HashKey(key string) uint64 {
	return hashBytes([]byte(key))
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64() % RingSize
}

// Ring is the sorted-by-hash sequence of live peers.
type Ring struct {
	nodes []Node
}

// New creates an empty Ring.
func New() *Ring {
	return &Ring{}
}

// Nodes returns the current ring contents, sorted ascending by hash.
func (r *Ring) Nodes() []Node {
	out := make([]Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len returns the number of peers currently on the ring.
func (r *Ring) Len() int {
	return len(r.nodes)
}

// Rebuild derives a new ring from a membership snapshot, hashing every
// address and sorting ascending by hash with ties broken by address
// byte order. It reports whether the resulting sequence differs from
// the previous one at any index, length changes included; a changed
// ring is what triggers stabilization.
func (r *Ring) Rebuild(snapshot []address.Address) (changed bool) {
	next := make([]Node, 0, len(snapshot))
	for _, a := range snapshot {
		next = append(next, Node{Addr: a, Hash: HashAddress(a)})
	}
	sort.Slice(next, func(i, j int) bool {
		if next[i].Hash != next[j].Hash {
			return next[i].Hash < next[j].Hash
		}
		return addrLess(next[i].Addr, next[j].Addr)
	})

	changed = !sameSequence(r.nodes, next)
	r.nodes = next
	return changed
}

func addrLess(a, b address.Address) bool {
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Port < b.Port
}

func sameSequence(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Hash != b[i].Hash || !a[i].Addr.Equal(b[i].Addr) {
			return false
		}
	}
	return true
}

// ReplicasFor resolves the three consecutive ring successors (inclusive
// of the primary) responsible for key. Returns nil if fewer than
// ReplicationFactor peers are on the ring; the coordinator treats that
// as fail-fast and lets the transaction time out.
func (r *Ring) ReplicasFor(key string) []address.Address {
	if len(r.nodes) < ReplicationFactor {
		return nil
	}

	p := HashKey(key)
	primary := sort.Search(len(r.nodes), func(i int) bool {
		return r.nodes[i].Hash >= p
	})
	if primary == len(r.nodes) {
		primary = 0
	}

	out := make([]address.Address, ReplicationFactor)
	for i := 0; i < ReplicationFactor; i++ {
		out[i] = r.nodes[(primary+i)%len(r.nodes)].Addr
	}
	return out
}
