package eventlog

import "github.com/mcastellin/distkv/internal/address"

// Multi fans every call out to a fixed set of Loggers, letting the host
// register the production ZapLogger and the control plane's WebSocket
// Hub side by side.
type Multi struct {
	sinks []Logger
}

var _ Logger = (*Multi)(nil)

// NewMulti creates a Logger that forwards every call to each of sinks.
func NewMulti(sinks ...Logger) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) LogNodeAdd(self, added address.Address) {
	for _, s := range m.sinks {
		s.LogNodeAdd(self, added)
	}
}
func (m *Multi) LogNodeRemove(self, removed address.Address) {
	for _, s := range m.sinks {
		s.LogNodeRemove(self, removed)
	}
}
func (m *Multi) LogCreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	for _, s := range m.sinks {
		s.LogCreateSuccess(self, isCoordinator, transID, key, value)
	}
}
func (m *Multi) LogCreateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	for _, s := range m.sinks {
		s.LogCreateFail(self, isCoordinator, transID, key, value)
	}
}
func (m *Multi) LogReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	for _, s := range m.sinks {
		s.LogReadSuccess(self, isCoordinator, transID, key, value)
	}
}
func (m *Multi) LogReadFail(self address.Address, isCoordinator bool, transID int32, key string) {
	for _, s := range m.sinks {
		s.LogReadFail(self, isCoordinator, transID, key)
	}
}
func (m *Multi) LogUpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	for _, s := range m.sinks {
		s.LogUpdateSuccess(self, isCoordinator, transID, key, value)
	}
}
func (m *Multi) LogUpdateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	for _, s := range m.sinks {
		s.LogUpdateFail(self, isCoordinator, transID, key, value)
	}
}
func (m *Multi) LogDeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string) {
	for _, s := range m.sinks {
		s.LogDeleteSuccess(self, isCoordinator, transID, key)
	}
}
func (m *Multi) LogDeleteFail(self address.Address, isCoordinator bool, transID int32, key string) {
	for _, s := range m.sinks {
		s.LogDeleteFail(self, isCoordinator, transID, key)
	}
}
