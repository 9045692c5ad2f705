package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mittag-lab/maniplink/internal/logging"
	"github.com/mittag-lab/maniplink/internal/sim"
)

var simListen string

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a controller simulator",
	Long:  "Run a controller simulator speaking the wire protocol, for development and demos without hardware. Manipulator identities and home positions come from the configuration.",
	Args:  cobra.NoArgs,
	RunE:  runSim,
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := logging.SetupMulti(cfg.Log.File, os.Stderr, logging.ParseLevel(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()

	srv := sim.New(simListen, cfg.Manipulators)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}
	defer srv.Stop()

	fmt.Printf("🦾 simulator listening on %s (Ctrl+C to stop)\n", srv.Addr())

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	<-ctx.Done()

	fmt.Println("🦾 simulator stopped")
	return nil
}

func init() {
	simCmd.Flags().StringVar(&simListen, "listen", "127.0.0.1:4001", "listen address")
	rootCmd.AddCommand(simCmd)
}
