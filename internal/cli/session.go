package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/geo/r3"

	"github.com/mittag-lab/maniplink/internal/config"
	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/rig"
)

// signalContext returns a context canceled by SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// openRig loads configuration, points logging at the log file, and
// connects to the controller. The returned cleanup closes both.
func openRig(ctx context.Context) (*rig.Rig, config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, nil, err
	}

	logCleanup, err := logging.Setup(cfg.Log.File, logging.ParseLevel(cfg.Log.Level))
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("set up logging: %w", err)
	}

	r := rig.New(&cfg)
	if err := r.Connect(ctx); err != nil {
		logCleanup()
		return nil, cfg, nil, fmt.Errorf("connect to controller at %s: %w", cfg.Controller.Addr(), err)
	}

	cleanup := func() {
		_ = r.Close()
		logCleanup()
	}
	return r, cfg, cleanup, nil
}

// fmtVec renders a position or delta for table output, millimetres.
func fmtVec(v r3.Vector) string {
	return fmt.Sprintf("%.2f, %.2f, %.2f", v.X, v.Y, v.Z)
}
