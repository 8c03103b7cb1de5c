package eventlog

import (
	"sync"

	"github.com/mcastellin/distkv/internal/address"
)

var _ Logger = (*Recorder)(nil)

// Event is a single recorded call against a Recorder.
type Event struct {
	Kind          string
	Self, Peer    address.Address
	IsCoordinator bool
	TransID       int32
	Key, Value    string
	Success       bool
}

// Recorder is an in-memory Logger used by tests to assert on emitted
// events without standing up a real zap sink.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
}

// All returns a snapshot of recorded events.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.Events))
	copy(out, r.Events)
	return out
}

func (r *Recorder) LogNodeAdd(self, added address.Address) {
	r.record(Event{Kind: "nodeAdd", Self: self, Peer: added})
}

func (r *Recorder) LogNodeRemove(self, removed address.Address) {
	r.record(Event{Kind: "nodeRemove", Self: self, Peer: removed})
}

func (r *Recorder) LogCreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	r.record(Event{Kind: "createSuccess", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key, Value: value, Success: true})
}
func (r *Recorder) LogCreateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	r.record(Event{Kind: "createFail", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key, Value: value})
}
func (r *Recorder) LogReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	r.record(Event{Kind: "readSuccess", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key, Value: value, Success: true})
}
func (r *Recorder) LogReadFail(self address.Address, isCoordinator bool, transID int32, key string) {
	r.record(Event{Kind: "readFail", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key})
}
func (r *Recorder) LogUpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	r.record(Event{Kind: "updateSuccess", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key, Value: value, Success: true})
}
func (r *Recorder) LogUpdateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	r.record(Event{Kind: "updateFail", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key, Value: value})
}
func (r *Recorder) LogDeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string) {
	r.record(Event{Kind: "deleteSuccess", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key, Success: true})
}
func (r *Recorder) LogDeleteFail(self address.Address, isCoordinator bool, transID int32, key string) {
	r.record(Event{Kind: "deleteFail", Self: self, IsCoordinator: isCoordinator, TransID: transID, Key: key})
}
