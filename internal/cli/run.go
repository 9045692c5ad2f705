package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mittag-lab/maniplink/internal/link"
	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/rig"
	"github.com/mittag-lab/maniplink/internal/telemetry"
)

// heartbeatMissLimit is how many consecutive missed heartbeats force a
// reconnect.
const heartbeatMissLimit = 3

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge daemon",
	Long:  "Connect to the controller and stay up: keep the heartbeat alive, reconnect when the link degrades, and serve the HTTP bridge when telemetry is enabled. Stops on SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := logging.SetupMulti(cfg.Log.File, os.Stderr, logging.ParseLevel(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r := rig.New(&cfg)
	defer r.Close()

	if err := r.Connect(ctx); err != nil {
		return fmt.Errorf("connect to controller at %s: %w", cfg.Controller.Addr(), err)
	}
	fmt.Printf("🦾 connected to controller at %s\n", cfg.Controller.Addr())

	if cfg.Telemetry.Enabled {
		ts := telemetry.New(cfg.Telemetry, r)
		if err := ts.Start(); err != nil {
			return fmt.Errorf("start telemetry bridge: %w", err)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = ts.Stop(sctx)
		}()
		fmt.Printf("🦾 telemetry bridge on http://%s\n", ts.Addr())
	}

	// Notice handlers run on the emitter goroutine, so the actual
	// reconnect happens down in the select loop, kicked through a
	// channel.
	redial := make(chan struct{}, 1)
	kick := func() {
		select {
		case redial <- struct{}{}:
		default:
		}
	}
	subID := r.Notices().Subscribe(func(n rig.Notice) {
		switch {
		case n.Heartbeat != nil && n.Heartbeat.Consecutive >= heartbeatMissLimit:
			kick()
		case n.Link != nil && n.Link.To == link.StateDisconnected && n.Link.Err != nil:
			kick()
		}
	})
	defer r.Notices().Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("🦾 shutting down")
			return nil
		case <-redial:
			slog.Warn("link degraded, reconnecting")
			_ = r.Disconnect()
			if err := r.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				slog.Error("reconnect failed, will retry", "error", err)
				go func() {
					select {
					case <-time.After(cfg.Controller.RetryDelay.Duration):
						kick()
					case <-ctx.Done():
					}
				}()
				continue
			}
			fmt.Printf("🦾 reconnected to controller at %s\n", cfg.Controller.Addr())
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
