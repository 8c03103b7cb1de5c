package cmd

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/host"
)

// TestBackgroundLoopsExitCleanlyOnCancel runs the background loops
// `distkv run` wires up (tick, fault-injection, client-load, and the
// goroutine fault-injection spawns per revival), cancels their context,
// and verifies nothing is left running.
func TestBackgroundLoopsExitCleanlyOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := host.New(eventlog.NewRecorder())
	introducer := address.Introducer
	h.Spawn(introducer, introducer)
	h.Spawn(address.New(2, 0), introducer)
	h.Spawn(address.New(3, 0), introducer)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{}, 3)
	go func() { tickLoop(ctx, h, time.Millisecond); done <- struct{}{} }()
	go func() { faultLoop(ctx, h, introducer, time.Millisecond); done <- struct{}{} }()
	go func() { clientLoop(ctx, h, time.Millisecond); done <- struct{}{} }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("background loop did not exit after context cancellation")
		}
	}
}
