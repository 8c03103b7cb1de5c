package kv

import (
	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/ring"
	"github.com/mcastellin/distkv/internal/wire"
)

// coordTransport is the subset of network.Shim the coordinator needs.
type coordTransport interface {
	Send(to address.Address, payload []byte)
}

// Coordinator turns client CRUD calls into quorum-replicated fan-out,
// and reconciles replies (or their absence) into a single
// success/failure log entry per transaction.
type Coordinator struct {
	self  address.Address
	tr    coordTransport
	log   eventlog.Logger
	table *Table
}

// NewCoordinator creates a Coordinator for self.
func NewCoordinator(self address.Address, tr coordTransport, log eventlog.Logger) *Coordinator {
	return &Coordinator{self: self, tr: tr, log: log, table: NewTable()}
}

// Table exposes the transaction table for the control plane and tests.
func (c *Coordinator) Table() *Table {
	return c.table
}

// ClientCreate, ClientRead, ClientUpdate and ClientDelete are the
// client entry points: resolve the replica set for key, allocate a
// transaction, and fan the CRUD message out to all three replicas. If
// the ring can't resolve three replicas, the transaction is still
// created with nothing sent and is left to fail on timeout.
func (c *Coordinator) ClientCreate(r *ring.Ring, now int64, key, value string) int32 {
	return c.dispatch(r, now, wire.Create, key, value)
}

func (c *Coordinator) ClientRead(r *ring.Ring, now int64, key string) int32 {
	return c.dispatch(r, now, wire.Read, key, "")
}

func (c *Coordinator) ClientUpdate(r *ring.Ring, now int64, key, value string) int32 {
	return c.dispatch(r, now, wire.Update, key, value)
}

func (c *Coordinator) ClientDelete(r *ring.Ring, now int64, key string) int32 {
	return c.dispatch(r, now, wire.Delete, key, "")
}

func (c *Coordinator) dispatch(r *ring.Ring, now int64, kind wire.Type, key, value string) int32 {
	tx := c.table.Allocate(kind, key, value, now)
	replicas := r.ReplicasFor(key)

	msg := wire.Message{
		Type:    kind,
		From:    c.self,
		TransID: tx.ID,
		Key:     key,
		Value:   value,
	}
	payload := msg.Encode()
	for _, addr := range replicas {
		c.tr.Send(addr, payload)
	}
	return tx.ID
}

// OnReply applies a REPLY or READREPLY to the named transaction. No-op
// if the transaction is unknown (already retired or never existed).
// Duplicate replies from the same replica are counted twice; replies
// are not deduplicated. On multiple READREPLYs the last-received value
// wins.
func (c *Coordinator) OnReply(msg wire.Message) {
	tx := c.table.Get(msg.TransID)
	if tx == nil {
		return
	}
	tx.Replies++
	if msg.Success {
		tx.Successes++
	}
	if msg.Type == wire.ReadReply {
		tx.CollectedValue = msg.Value
	}
}

// CheckTransactions decides every unlogged transaction that can be
// decided: success requires that all replies received so far succeeded
// at the moment quorum is reached; a transaction past TTransaction
// without quorum fails. Called once per tick, after the inbound mailbox
// has been drained. A third reply arriving after the decision is
// ignored.
func (c *Coordinator) CheckTransactions(now int64) {
	for _, tx := range c.table.Unlogged() {
		switch {
		case tx.Replies >= Quorum:
			c.logDecision(tx, tx.Successes == tx.Replies)
			c.table.MarkLogged(tx, now)
		case now-tx.CreatedAt > TTransaction:
			c.logDecision(tx, false)
			c.table.MarkLogged(tx, now)
		}
	}
	c.table.Retire(now)
}

func (c *Coordinator) logDecision(tx *Transaction, success bool) {
	value := tx.Value
	if tx.Kind == wire.Read {
		value = tx.CollectedValue
	}
	switch tx.Kind {
	case wire.Create:
		if success {
			c.log.LogCreateSuccess(c.self, true, tx.ID, tx.Key, tx.Value)
		} else {
			c.log.LogCreateFail(c.self, true, tx.ID, tx.Key, tx.Value)
		}
	case wire.Read:
		if success {
			c.log.LogReadSuccess(c.self, true, tx.ID, tx.Key, value)
		} else {
			c.log.LogReadFail(c.self, true, tx.ID, tx.Key)
		}
	case wire.Update:
		if success {
			c.log.LogUpdateSuccess(c.self, true, tx.ID, tx.Key, tx.Value)
		} else {
			c.log.LogUpdateFail(c.self, true, tx.ID, tx.Key, tx.Value)
		}
	case wire.Delete:
		if success {
			c.log.LogDeleteSuccess(c.self, true, tx.ID, tx.Key)
		} else {
			c.log.LogDeleteFail(c.self, true, tx.ID, tx.Key)
		}
	}
}
