// Package kv implements the quorum-replicated key-value layer: the
// client-facing CRUD entry points, the per-key three-way replication
// fan-out, the reply-driven quorum decision, and the ring-change
// stabilization sweep. Stabilization re-plants keys onto their current
// replica set but never garbage-collects stale copies left on peers
// that dropped out of it.
package kv

import (
	"container/heap"

	"github.com/google/uuid"

	"github.com/mcastellin/distkv/internal/wire"
)

// Quorum and timing thresholds: a transaction is decided once Quorum
// replies arrive, fails after TTransaction ticks without a decision,
// and is garbage-collected RetireAfter ticks after it was logged.
const (
	Quorum       = 2
	TTransaction int64 = 10
	RetireAfter  int64 = TTransaction * 2
)

// Transaction is the coordinator-side bookkeeping row for one client
// CRUD call.
// Trace is a debug-only correlation id for log and control-plane
// inspection; it never crosses the wire and plays no part in quorum
// semantics.
type Transaction struct {
	ID             int32
	Kind           wire.Type
	Key            string
	Value          string
	CreatedAt      int64
	Replies        uint8
	Successes      uint8
	CollectedValue string
	Logged         bool
	Trace          uuid.UUID
}

// Table is the coordinator's transaction table: an id-keyed map plus a
// min-heap over retirement deadlines so logged rows can be evicted in
// deadline order without scanning the whole map.
type Table struct {
	byID map[int32]*Transaction
	heap retireHeap
	next int32
}

// NewTable creates an empty transaction table.
func NewTable() *Table {
	t := &Table{byID: map[int32]*Transaction{}}
	heap.Init(&t.heap)
	return t
}

// Allocate reserves the next transaction id and inserts a fresh row.
func (t *Table) Allocate(kind wire.Type, key, value string, now int64) *Transaction {
	t.next++
	tx := &Transaction{ID: t.next, Kind: kind, Key: key, Value: value, CreatedAt: now, Trace: uuid.New()}
	t.byID[tx.ID] = tx
	return tx
}

// Get returns the transaction for id, or nil.
func (t *Table) Get(id int32) *Transaction {
	return t.byID[id]
}

// Unlogged returns every transaction not yet logged, in no particular
// order.
func (t *Table) Unlogged() []*Transaction {
	out := make([]*Transaction, 0, len(t.byID))
	for _, tx := range t.byID {
		if !tx.Logged {
			out = append(out, tx)
		}
	}
	return out
}

// MarkLogged flags tx as logged and schedules it for retirement at
// now + RetireAfter, keeping the table bounded.
func (t *Table) MarkLogged(tx *Transaction, now int64) {
	tx.Logged = true
	heap.Push(&t.heap, &retireEntry{tx: tx, deadline: now + RetireAfter})
}

// Retire evicts every logged transaction whose retirement deadline has
// passed as of now.
func (t *Table) Retire(now int64) {
	for len(t.heap) > 0 && t.heap[0].deadline <= now {
		e := heap.Pop(&t.heap).(*retireEntry)
		delete(t.byID, e.tx.ID)
	}
}

// Len returns the number of transactions currently tracked (including
// logged-but-not-yet-retired rows).
func (t *Table) Len() int {
	return len(t.byID)
}

// All returns every transaction currently tracked (logged or not), in no
// particular order, for the control plane's read-only inspection view.
func (t *Table) All() []*Transaction {
	out := make([]*Transaction, 0, len(t.byID))
	for _, tx := range t.byID {
		out = append(out, tx)
	}
	return out
}

type retireEntry struct {
	tx       *Transaction
	deadline int64
}

type retireHeap []*retireEntry

func (h retireHeap) Len() int            { return len(h) }
func (h retireHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h retireHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *retireHeap) Push(v any) {
	*h = append(*h, v.(*retireEntry))
}
func (h *retireHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
