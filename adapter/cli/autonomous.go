package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

var autonomousCmd = &cobra.Command{
	Use:   "autonomous",
	Short: "Control the autonomous engine",
}

var autonomousPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause autonomous re-planning",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("engine not configured")
		}

		if app.Replanner != nil {
			app.Replanner.Pause()
			fmt.Println("Engine pausing; the current pass finishes first.")
			return nil
		}
		if app.States == nil {
			return fmt.Errorf("no state store configured")
		}
		if err := app.States.SetStatus(cmd.Context(), app.SessionID, domain.StatePaused); err != nil {
			return err
		}
		fmt.Println("Pause requested.")
		return nil
	},
}

var autonomousResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume autonomous re-planning",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("engine not configured")
		}

		if app.Replanner != nil {
			app.Replanner.Resume()
			fmt.Println("Engine resuming; an evaluation pass runs immediately.")
			return nil
		}
		if app.States == nil {
			return fmt.Errorf("no state store configured")
		}
		if err := app.States.SetStatus(cmd.Context(), app.SessionID, domain.StateAutonomous); err != nil {
			return err
		}
		fmt.Println("Resume requested.")
		return nil
	},
}

var autonomousStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine state",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("engine not configured")
		}

		var state domain.EngineState
		if app.Replanner != nil {
			state = app.Replanner.State()
		} else if app.States != nil {
			var err error
			state, err = app.States.Status(cmd.Context(), app.SessionID)
			if err != nil {
				return err
			}
		} else {
			return fmt.Errorf("no state store configured")
		}

		running := "no"
		if state.IsRunning() {
			running = "yes"
		}
		fmt.Printf("session: %s\nstate:   %s\nrunning: %s\n", app.SessionID, state, running)
		return nil
	},
}

func init() {
	autonomousCmd.AddCommand(autonomousPauseCmd)
	autonomousCmd.AddCommand(autonomousResumeCmd)
	autonomousCmd.AddCommand(autonomousStatusCmd)
	rootCmd.AddCommand(autonomousCmd)
}
