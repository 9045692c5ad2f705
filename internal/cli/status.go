package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show controller and manipulator status",
	Long:  "Connect to the controller, request a fresh position report, and print both manipulator positions.",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r, cfg, cleanup, err := openRig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := r.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	fmt.Printf("🦾 controller connected at %s\n", cfg.Controller.Addr())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UNIT\tCARRIAGE (mm)\tTIP (mm)")
	_, _ = fmt.Fprintf(w, "left\t%s\t%s\n", fmtVec(snap.Joints.Left), fmtVec(snap.Pose.Left))
	_, _ = fmt.Fprintf(w, "right\t%s\t%s\n", fmtVec(snap.Joints.Right), fmtVec(snap.Pose.Right))
	_ = w.Flush()

	if plan, ok := r.CurrentPlan(); ok {
		fmt.Printf("   Trajectory: %s (plan %s, %d points, %.1fs)\n",
			r.TrajectoryState(), plan.ID, len(plan.Points), plan.Elapsed)
	} else {
		fmt.Printf("   Trajectory: %s\n", r.TrajectoryState())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
