package membership

import (
	"github.com/mcastellin/distkv/internal/address"
)

// Failure-detection thresholds, in local ticks: a silent peer is
// suspected after TFail and evicted after TRemove.
const (
	TFail   int64 = 5
	TRemove int64 = 20
)

// State classifies a PeerEntry's liveness relative to the local clock,
// derived from LastSeen rather than stored authoritatively.
type State int

const (
	Alive State = iota
	Suspect
	Removed
)

func (s State) String() string {
	switch s {
	case Alive:
		return "ALIVE"
	case Suspect:
		return "SUSPECT"
	case Removed:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// PeerEntry is a single membership-table row.
type PeerEntry struct {
	Addr      address.Address
	Heartbeat uint64
	LastSeen  int64
}

// StateAt classifies the row's liveness at tick now.
func (e PeerEntry) StateAt(now int64) State {
	age := now - e.LastSeen
	switch {
	case age < TFail:
		return Alive
	case age < TRemove:
		return Suspect
	default:
		return Removed
	}
}

// Table is an unordered collection of PeerEntry rows, keyed by address,
// never containing a row for its own owner.
type Table struct {
	rows map[address.Address]*PeerEntry
}

// NewTable creates an empty membership table.
func NewTable() *Table {
	return &Table{rows: map[address.Address]*PeerEntry{}}
}

// Get returns the row for addr, or nil if absent.
func (t *Table) Get(addr address.Address) *PeerEntry {
	return t.rows[addr]
}

// Put inserts or overwrites the row for e.Addr.
func (t *Table) Put(e PeerEntry) {
	row := e
	t.rows[e.Addr] = &row
}

// Delete removes the row for addr, if any.
func (t *Table) Delete(addr address.Address) {
	delete(t.rows, addr)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Entries returns every row in the table, in no particular order.
func (t *Table) Entries() []PeerEntry {
	out := make([]PeerEntry, 0, len(t.rows))
	for _, e := range t.rows {
		out = append(out, *e)
	}
	return out
}

// Addresses returns every peer address currently in the table.
func (t *Table) Addresses() []address.Address {
	out := make([]address.Address, 0, len(t.rows))
	for a := range t.rows {
		out = append(out, a)
	}
	return out
}
