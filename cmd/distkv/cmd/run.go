package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcastellin/distkv/internal/address"
	"github.com/mcastellin/distkv/internal/control"
	"github.com/mcastellin/distkv/internal/eventlog"
	"github.com/mcastellin/distkv/internal/host"
)

var (
	flagPeers       int
	flagBind        string
	flagTick        time.Duration
	flagDropRate    float64
	flagFaultEvery  time.Duration
	flagClientEvery time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "bootstrap a simulated cluster and serve its control plane",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&flagPeers, "peers", 10, "number of peers to bootstrap against the introducer")
	runCmd.Flags().StringVar(&flagBind, "bind", ":8090", "control-plane HTTP/WS bind address")
	runCmd.Flags().DurationVar(&flagTick, "tick", 100*time.Millisecond, "wall-clock duration of one simulated protocol tick")
	runCmd.Flags().Float64Var(&flagDropRate, "drop-rate", 0, "fraction of sent packets the emulated network drops, in [0,1)")
	runCmd.Flags().DurationVar(&flagFaultEvery, "fault-interval", 0, "if set, periodically kill then revive a random non-introducer peer")
	runCmd.Flags().DurationVar(&flagClientEvery, "client-interval", 0, "if set, periodically issue a client CREATE against a random peer")
}

func runRun(cmd *cobra.Command, args []string) error {
	if flagPeers < 1 {
		return errors.New("--peers must be at least 1")
	}

	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	hub := control.NewHub()
	log := eventlog.NewMulti(eventlog.NewZapLogger(logger), hub)

	h := host.New(log)
	h.Bus().DropRate = flagDropRate

	introducer := address.Introducer
	for i := 0; i < flagPeers; i++ {
		h.Spawn(address.New(uint32(i+1), 0), introducer)
	}

	srv := control.NewServer(flagBind, h, hub)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go tickLoop(ctx, h, flagTick)
	if flagFaultEvery > 0 {
		go faultLoop(ctx, h, introducer, flagFaultEvery)
	}
	if flagClientEvery > 0 {
		go clientLoop(ctx, h, flagClientEvery)
	}

	logger.Info("distkv cluster starting",
		zap.Int("peers", flagPeers),
		zap.String("bind", flagBind),
		zap.Duration("tick", flagTick),
		zap.Float64("dropRate", flagDropRate))

	return srv.Serve(ctx)
}

func tickLoop(ctx context.Context, h *host.Host, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Tick()
		}
	}
}

// faultLoop periodically kills a random live peer (other than the
// introducer, so later joins keep working) and schedules its revival
// one interval later, keeping failure detection and ring-change
// stabilization continuously exercised.
func faultLoop(ctx context.Context, h *host.Host, introducer address.Address, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			live := h.Addresses()
			if len(live) == 0 {
				continue
			}
			victim := live[rand.Intn(len(live))]
			if victim.Equal(introducer) {
				continue
			}
			h.Kill(victim)
			go reviveAfter(ctx, h, victim, introducer, interval)
		}
	}
}

func reviveAfter(ctx context.Context, h *host.Host, victim, introducer address.Address, delay time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(delay):
		h.Revive(victim, introducer)
	}
}

// clientLoop issues a stream of CREATE calls against random coordinators,
// giving stabilization and quorum something to converge over in a running
// demo cluster.
func clientLoop(ctx context.Context, h *host.Host, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			live := h.Addresses()
			if len(live) == 0 {
				continue
			}
			coord := live[rand.Intn(len(live))]
			n++
			h.ClientCreate(coord, fmt.Sprintf("key-%d", n), fmt.Sprintf("value-%d", n))
		}
	}
}
