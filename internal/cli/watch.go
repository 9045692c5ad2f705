package cli

import (
	"github.com/spf13/cobra"

	"github.com/mittag-lab/maniplink/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard for positions, trajectory state, and events",
	Long: `Connect to the controller and open a full-screen dashboard that tracks
manipulator positions, the trajectory lifecycle, and every link, heartbeat,
and status event as it arrives.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	// openRig sends slog to the log file, so the terminal is free for
	// the alternate screen.
	r, _, cleanup, err := openRig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return tui.Run(r)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
