package kv

import (
	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/store"
	"github.com/mcastellin/distkv/internal/wire"
)

// replicaTransport is the subset of network.Shim the replica needs.
type replicaTransport interface {
	Send(to address.Address, payload []byte)
}

// Replica is the inbound CRUD handler: it applies an operation to the
// local store, logs the outcome, and replies. The exception is a
// transID == -1 stabilization message, which applies silently.
type Replica struct {
	self  address.Address
	tr    replicaTransport
	log   eventlog.Logger
	store *store.LocalStore
}

// NewReplica creates a Replica for self backed by its own LocalStore.
func NewReplica(self address.Address, tr replicaTransport, log eventlog.Logger) *Replica {
	return &Replica{self: self, tr: tr, log: log, store: store.New()}
}

// Store exposes the LocalStore for the stabilizer and for tests.
func (r *Replica) Store() *store.LocalStore {
	return r.store
}

// Handle applies an inbound CRUD message. Returns immediately for
// anything that isn't a CRUD verb.
func (r *Replica) Handle(msg wire.Message) {
	if !msg.IsKV() || msg.Type == wire.Reply || msg.Type == wire.ReadReply {
		return
	}

	if msg.IsStabilization() {
		r.store.Create(msg.Key, msg.Value)
		return
	}

	switch msg.Type {
	case wire.Create:
		r.store.Create(msg.Key, msg.Value)
		r.reply(msg, true, "")
	case wire.Read:
		v, ok := r.store.Read(msg.Key)
		if !ok {
			v = ""
		}
		r.replyRead(msg, v != "", v)
	case wire.Update:
		ok := r.store.Update(msg.Key, msg.Value)
		r.reply(msg, ok, "")
	case wire.Delete:
		ok := r.store.Delete(msg.Key)
		r.reply(msg, ok, "")
	}
}

func (r *Replica) reply(msg wire.Message, success bool, value string) {
	r.logApply(msg, success, value)
	reply := wire.Message{
		Type:    wire.Reply,
		From:    r.self,
		TransID: msg.TransID,
		Key:     msg.Key,
		Value:   msg.Value,
		Success: success,
	}
	r.tr.Send(msg.From, reply.Encode())
}

func (r *Replica) replyRead(msg wire.Message, success bool, value string) {
	r.logApply(msg, success, value)
	reply := wire.Message{
		Type:    wire.ReadReply,
		From:    r.self,
		TransID: msg.TransID,
		Key:     msg.Key,
		Value:   value,
		Success: success,
	}
	r.tr.Send(msg.From, reply.Encode())
}

func (r *Replica) logApply(msg wire.Message, success bool, value string) {
	switch msg.Type {
	case wire.Create:
		if success {
			r.log.LogCreateSuccess(r.self, false, msg.TransID, msg.Key, msg.Value)
		} else {
			r.log.LogCreateFail(r.self, false, msg.TransID, msg.Key, msg.Value)
		}
	case wire.Read:
		if success {
			r.log.LogReadSuccess(r.self, false, msg.TransID, msg.Key, value)
		} else {
			r.log.LogReadFail(r.self, false, msg.TransID, msg.Key)
		}
	case wire.Update:
		if success {
			r.log.LogUpdateSuccess(r.self, false, msg.TransID, msg.Key, msg.Value)
		} else {
			r.log.LogUpdateFail(r.self, false, msg.TransID, msg.Key, msg.Value)
		}
	case wire.Delete:
		if success {
			r.log.LogDeleteSuccess(r.self, false, msg.TransID, msg.Key)
		} else {
			r.log.LogDeleteFail(r.self, false, msg.TransID, msg.Key)
		}
	}
}
