package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Return both carriages to their configured home positions",
	Long:  "Plan and execute a trajectory that returns both carriages to the home positions from the configuration. Blocks until the move completes.",
	Args:  cobra.NoArgs,
	RunE:  runHome,
}

func runHome(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	r, cfg, cleanup, err := openRig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("🦾 homing carriages to left %s  right %s\n",
		fmtVec(cfg.Manipulators.HomeLeftVec()), fmtVec(cfg.Manipulators.HomeRightVec()))

	if err := r.Home(ctx); err != nil {
		return fmt.Errorf("home: %w", err)
	}
	fmt.Println("🦾 both manipulators homed")
	return nil
}

func init() {
	rootCmd.AddCommand(homeCmd)
}
