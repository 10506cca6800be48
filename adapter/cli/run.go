package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the autonomous engine",
	Long: `Compute an initial plan, commit it to the calendar, and keep
monitoring for new tasks and conflicts until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Replanner == nil {
			return fmt.Errorf("engine not configured")
		}

		ctx := cmd.Context()
		if err := app.Replanner.Start(ctx); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		fmt.Printf("Engine running (session %s). Press Ctrl+C to stop.\n", app.SessionID)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			app.Logger.Info("shutting down", "signal", sig.String())
		case <-ctx.Done():
		}

		return app.Replanner.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
