package kv

import (
	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/ring"
	"github.com/mcastellin/distkv/internal/store"
	"github.com/mcastellin/distkv/internal/wire"
)

// stabilizeTransport is the subset of network.Shim stabilization needs.
type stabilizeTransport interface {
	Send(to address.Address, payload []byte)
}

// Stabilize runs after a ring-view change: it re-plants every key the
// replica still holds onto that key's current replica set, using
// transID = -1 stabilization CREATE messages the receiving replica
// applies silently (no log entry, no reply). Peers that dropped out of
// a key's replica set keep their stale copies; nothing collects them.
func Stabilize(self address.Address, tr stabilizeTransport, s *store.LocalStore, r *ring.Ring) {
	for _, item := range s.All() {
		replicas := r.ReplicasFor(item.Key)
		if len(replicas) == 0 {
			continue
		}
		msg := wire.Message{
			Type:    wire.Create,
			From:    self,
			TransID: wire.StabilizationTxID,
			Key:     item.Key,
			Value:   item.Value,
		}
		payload := msg.Encode()
		for _, addr := range replicas {
			tr.Send(addr, payload)
		}
	}
}
