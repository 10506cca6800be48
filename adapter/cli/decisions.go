package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	decisionsSince string
	decisionsLimit int
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect the decision log",
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show logged decisions, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("no storage configured")
		}

		since := time.Time{}
		if decisionsSince != "" {
			parsed, err := time.ParseInLocation("2006-01-02", decisionsSince, time.Local)
			if err != nil {
				return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
			}
			since = parsed
		}

		entries, err := app.Decisions.FindBySession(cmd.Context(), app.SessionID, since, decisionsLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No decisions logged.")
			return nil
		}

		for _, entry := range entries {
			fmt.Println()
			fmt.Printf("  %s  [%s]  %s\n",
				entry.CreatedAt().Format("2006-01-02 15:04:05"), entry.Trigger(), entry.Title())
			fmt.Println(strings.Repeat("-", 60))
			for _, reason := range entry.Reasoning() {
				fmt.Printf("    %s\n", reason)
			}
			for _, action := range entry.Actions() {
				line := fmt.Sprintf("    %-14s %s", action.Type, action.Title)
				if action.To != nil {
					line += fmt.Sprintf("  -> %s - %s",
						action.To.Start.Format("15:04"), action.To.End.Format("15:04"))
				}
				if action.Reason != "" {
					line += fmt.Sprintf("  (%s)", action.Reason)
				}
				fmt.Println(line)
			}
			impact := entry.Impact()
			fmt.Printf("    placed=%d moved=%d pending=%d focus=%dm\n",
				impact.TasksPlaced, impact.EventsMoved, impact.TasksLeftPending, impact.ProtectedFocusMinutes)
		}
		fmt.Println()
		return nil
	},
}

var decisionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the session's decision log",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("no storage configured")
		}
		if err := app.Decisions.DeleteBySession(cmd.Context(), app.SessionID); err != nil {
			return err
		}
		fmt.Println("Decision log cleared.")
		return nil
	},
}

func init() {
	decisionsListCmd.Flags().StringVar(&decisionsSince, "since", "", "only show entries from this date on (YYYY-MM-DD)")
	decisionsListCmd.Flags().IntVar(&decisionsLimit, "limit", 50, "maximum number of entries")

	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsClearCmd)
	rootCmd.AddCommand(decisionsCmd)
}
