package eventlog

import (
	"testing"

	"github.com/mcastellin/distkv/internal/address"
)

func TestMultiFansOutToEverySink(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := NewMulti(a, b)

	self, peer := address.New(1, 0), address.New(2, 0)
	m.LogNodeAdd(self, peer)
	m.LogCreateFail(self, true, 7, "k", "v")

	for _, rec := range []*Recorder{a, b} {
		events := rec.All()
		if len(events) != 2 {
			t.Fatalf("expected both sinks to receive 2 events, got %d", len(events))
		}
		if events[0].Kind != "nodeAdd" || events[1].Kind != "createFail" {
			t.Fatalf("unexpected event kinds: %+v", events)
		}
	}
}

func TestMultiWithNoSinksIsANoop(t *testing.T) {
	m := NewMulti()
	m.LogNodeAdd(address.New(1, 0), address.New(2, 0))
}
