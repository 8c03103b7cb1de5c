// Package eventlog implements the structured event log sink the
// protocols report into: node-add/node-remove loggers for the
// membership engine, and per-operation success/failure loggers for each
// KV CRUD verb. The Logger interface is the contract; ZapLogger is the
// production implementation backed by go.uber.org/zap.
package eventlog

import (
	"go.uber.org/zap"

	"github.com/mcastellin/distkv/internal/address"
)

// Logger is the event-oriented sink API. isCoordinator distinguishes a
// replica-apply event (false) from a quorum-decision event at the
// coordinator (true).
type Logger interface {
	LogNodeAdd(self, added address.Address)
	LogNodeRemove(self, removed address.Address)

	LogCreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string)
	LogCreateFail(self address.Address, isCoordinator bool, transID int32, key, value string)
	LogReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string)
	LogReadFail(self address.Address, isCoordinator bool, transID int32, key string)
	LogUpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string)
	LogUpdateFail(self address.Address, isCoordinator bool, transID int32, key, value string)
	LogDeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string)
	LogDeleteFail(self address.Address, isCoordinator bool, transID int32, key string)
}

// ZapLogger implements Logger over a *zap.Logger, attaching the peer
// address, transaction id and role as structured fields rather than
// formatting them into the message string.
type ZapLogger struct {
	L *zap.Logger
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{L: l}
}

func (z *ZapLogger) LogNodeAdd(self, added address.Address) {
	z.L.Info("node add",
		zap.Stringer("self", self),
		zap.Stringer("added", added),
	)
}

func (z *ZapLogger) LogNodeRemove(self, removed address.Address) {
	z.L.Info("node remove",
		zap.Stringer("self", self),
		zap.Stringer("removed", removed),
	)
}

func (z *ZapLogger) op(level string, self address.Address, isCoordinator bool, transID int32, verb string, key, value string, success bool) {
	fields := []zap.Field{
		zap.Stringer("self", self),
		zap.Bool("coordinator", isCoordinator),
		zap.Int32("transID", transID),
		zap.String("verb", verb),
		zap.String("key", key),
		zap.Bool("success", success),
	}
	if value != "" {
		fields = append(fields, zap.String("value", value))
	}
	if success {
		z.L.Info(level, fields...)
	} else {
		z.L.Warn(level, fields...)
	}
}

func (z *ZapLogger) LogCreateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	z.op("create", self, isCoordinator, transID, "CREATE", key, value, true)
}
func (z *ZapLogger) LogCreateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	z.op("create", self, isCoordinator, transID, "CREATE", key, value, false)
}
func (z *ZapLogger) LogReadSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	z.op("read", self, isCoordinator, transID, "READ", key, value, true)
}
func (z *ZapLogger) LogReadFail(self address.Address, isCoordinator bool, transID int32, key string) {
	z.op("read", self, isCoordinator, transID, "READ", key, "", false)
}
func (z *ZapLogger) LogUpdateSuccess(self address.Address, isCoordinator bool, transID int32, key, value string) {
	z.op("update", self, isCoordinator, transID, "UPDATE", key, value, true)
}
func (z *ZapLogger) LogUpdateFail(self address.Address, isCoordinator bool, transID int32, key, value string) {
	z.op("update", self, isCoordinator, transID, "UPDATE", key, value, false)
}
func (z *ZapLogger) LogDeleteSuccess(self address.Address, isCoordinator bool, transID int32, key string) {
	z.op("delete", self, isCoordinator, transID, "DELETE", key, "", true)
}
func (z *ZapLogger) LogDeleteFail(self address.Address, isCoordinator bool, transID int32, key string) {
	z.op("delete", self, isCoordinator, transID, "DELETE", key, "", false)
}
