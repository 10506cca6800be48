package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chiefhq/chief/internal/scheduling/application/services"
	"github.com/chiefhq/chief/internal/scheduling/domain"
)

var planDate string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview today's allocation",
	Long: `Run a single allocation pass and show what the engine would do,
without writing anything to the calendar.

Examples:
  chief plan                    # Preview today
  chief plan --date 2026-03-02  # Preview a specific date`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("no storage configured")
		}

		now := time.Now()
		if planDate != "" {
			parsed, err := time.ParseInLocation("2006-01-02", planDate, time.Local)
			if err != nil {
				return fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
			}
			now = parsed.Add(time.Duration(app.Config.WorkDayStartHour) * time.Hour)
		}

		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		window := domain.TimeRange{
			Start: day.Add(time.Duration(app.Config.WorkDayStartHour) * time.Hour),
			End:   day.Add(time.Duration(app.Config.WorkDayEndHour) * time.Hour),
		}

		events, err := app.Calendar.ListEvents(cmd.Context(), window)
		if err != nil {
			return fmt.Errorf("list calendar events: %w", err)
		}
		tasks, err := app.Tasks.FindPending(cmd.Context(), app.SessionID)
		if err != nil {
			return fmt.Errorf("list pending tasks: %w", err)
		}

		rules := domain.NewRuleSet()
		if app.Replanner != nil {
			rules = app.Replanner.Rules()
		}

		allocator := services.NewSlotAllocator(services.NewUrgencyScorer())
		plan := allocator.Allocate(services.PlanRequest{
			Window: window,
			Now:    now,
			Tasks:  tasks,
			Events: events,
			Rules:  rules,
		})

		fmt.Println()
		fmt.Printf("  PLAN PREVIEW: %s\n", day.Format("Monday, January 2, 2006"))
		fmt.Println(strings.Repeat("=", 60))

		fmt.Println("\n  CALENDAR")
		if len(events) == 0 {
			fmt.Println("    (empty)")
		}
		for _, ev := range events {
			fmt.Printf("    %s - %s  %s (%s)\n",
				ev.Interval.Start.Format("15:04"), ev.Interval.End.Format("15:04"),
				ev.Title, ev.Flexibility)
		}

		fmt.Println("\n  PROPOSED")
		if !plan.HasChanges() {
			fmt.Println("    Nothing to do.")
		}
		for _, rel := range plan.Relocations {
			fmt.Printf("    move   %s -> %s - %s\n",
				rel.Event.Title, rel.To.Start.Format("15:04"), rel.To.End.Format("15:04"))
		}
		for _, pl := range plan.Placements {
			marker := ""
			if pl.Preferred {
				marker = "  (preferred window)"
			}
			fmt.Printf("    place  %s -> %s - %s%s\n",
				pl.Task.Title(), pl.Interval.Start.Format("15:04"), pl.Interval.End.Format("15:04"), marker)
		}
		for _, up := range plan.Unplaced {
			fmt.Printf("    skip   %s (%s)\n", up.Task.Title(), up.Reason)
		}
		if plan.ProtectedBreak > 0 {
			fmt.Printf("\n  Protected break: %s\n", plan.ProtectedBreak)
		}
		fmt.Println("\n  Apply with: chief run")
		fmt.Println()
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planDate, "date", "", "date to plan (YYYY-MM-DD)")
	rootCmd.AddCommand(planCmd)
}
