package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"

	"github.com/mittag-lab/maniplink/internal/rig"
	"github.com/mittag-lab/maniplink/internal/status"
)

var stepCmd = &cobra.Command{
	Use:   "step <dx> <dy> <dz>",
	Short: "Jog both carriages by a relative delta",
	Long: "Send a relative jog to the controller. The delta is in millimetres and applies " +
		"to both carriages. Negative components need a leading \"--\", for example: " +
		"maniplink step -- -1 0 0.5",
	Args: cobra.ExactArgs(3),
	RunE: runStep,
}

func runStep(cmd *cobra.Command, args []string) error {
	var delta r3.Vector
	for i, dst := range []*float64{&delta.X, &delta.Y, &delta.Z} {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return fmt.Errorf("parse delta component %q: %w", args[i], err)
		}
		*dst = v
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r, cfg, cleanup, err := openRig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// Subscribe before sending so the completion notice cannot slip by.
	done := make(chan struct{}, 1)
	subID := r.Notices().Subscribe(func(n rig.Notice) {
		if n.Status != nil && n.Status.Reason == status.ReasonStepCompleted {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	defer r.Notices().Unsubscribe(subID)

	if err := r.Step(delta); err != nil {
		return fmt.Errorf("step: %w", err)
	}
	fmt.Printf("🦾 step sent: delta %s mm\n", fmtVec(delta))

	select {
	case <-done:
		// The completion notice carries no positions; fetch fresh ones.
		if snap, err := r.Status(ctx); err == nil {
			fmt.Printf("   tips now left %s  right %s\n", fmtVec(snap.Pose.Left), fmtVec(snap.Pose.Right))
		}
	case <-time.After(cfg.Controller.ResponseTimeout.Duration):
		fmt.Println("   no completion notice from the controller")
	case <-ctx.Done():
	}
	return nil
}

func init() {
	rootCmd.AddCommand(stepCmd)
}
