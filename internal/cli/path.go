package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"

	"github.com/mittag-lab/maniplink/internal/kinematics"
	"github.com/mittag-lab/maniplink/internal/paths"
	"github.com/mittag-lab/maniplink/internal/trajectory"
)

var (
	pathLeft  string
	pathRight string
	pathFile  string
	pathWait  bool
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Plan and execute trajectories",
	Long:  "Commands for planned multi-point motion.",
}

var pathRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan a trajectory and execute it",
	Long: "Plan a trajectory to a target pose (--left/--right, millimetres) or through a " +
		"YAML waypoint file (--file), upload it, and start execution. With --wait the " +
		"command blocks until the controller reports completion.",
	Args: cobra.NoArgs,
	RunE: runPathRun,
}

func runPathRun(cmd *cobra.Command, args []string) error {
	haveTarget := pathLeft != "" || pathRight != ""
	switch {
	case haveTarget && pathFile != "":
		return fmt.Errorf("--left/--right and --file are mutually exclusive")
	case pathLeft != "" && pathRight == "", pathRight != "" && pathLeft == "":
		return fmt.Errorf("--left and --right must be given together")
	case !haveTarget && pathFile == "":
		return fmt.Errorf("a target (--left/--right) or a waypoint file (--file) is required")
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r, _, cleanup, err := openRig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var plan trajectory.Plan
	if haveTarget {
		left, err := parseTriple(pathLeft)
		if err != nil {
			return fmt.Errorf("parse --left: %w", err)
		}
		right, err := parseTriple(pathRight)
		if err != nil {
			return fmt.Errorf("parse --right: %w", err)
		}
		plan, err = r.PlanTo(ctx, kinematics.Pose{Left: left, Right: right})
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	} else {
		file, err := resolveWaypointFile(pathFile)
		if err != nil {
			return err
		}
		plan, err = r.PlanFile(ctx, file)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}

	fmt.Printf("🦾 plan %s ready: %d points, %.1fs\n", plan.ID, len(plan.Points), plan.Elapsed)

	if pathWait {
		if err := r.RunPlanned(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		fmt.Println("🦾 trajectory complete")
		if snap, err := r.Status(ctx); err == nil {
			fmt.Printf("   tips now left %s  right %s\n", fmtVec(snap.Pose.Left), fmtVec(snap.Pose.Right))
		}
		return nil
	}

	if err := r.Send(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := r.Execute(); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	fmt.Println("🦾 execution started (controller continues on its own)")
	return nil
}

// parseTriple parses an "x,y,z" coordinate triple in millimetres.
func parseTriple(s string) (r3.Vector, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vector{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v r3.Vector
	for i, dst := range []*float64{&v.X, &v.Y, &v.Z} {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("component %d of %q: %w", i+1, s, err)
		}
		*dst = f
	}
	return v, nil
}

// resolveWaypointFile accepts a real path or the bare name of a stored
// trajectory under ~/.maniplink/trajectories.
func resolveWaypointFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	stored, err := paths.TrajectoryPath(strings.TrimSuffix(name, ".yaml"))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(stored); err != nil {
		return "", fmt.Errorf("waypoint file %q not found (also tried %s)", name, stored)
	}
	return stored, nil
}

func init() {
	pathRunCmd.Flags().StringVar(&pathLeft, "left", "", "left tip target as x,y,z (mm)")
	pathRunCmd.Flags().StringVar(&pathRight, "right", "", "right tip target as x,y,z (mm)")
	pathRunCmd.Flags().StringVarP(&pathFile, "file", "f", "", "YAML waypoint file or stored trajectory name")
	pathRunCmd.Flags().BoolVarP(&pathWait, "wait", "w", false, "Block until the controller reports completion")
	pathCmd.AddCommand(pathRunCmd)
	rootCmd.AddCommand(pathCmd)
}
