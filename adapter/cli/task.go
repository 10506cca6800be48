package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

var (
	taskPriority string
	taskDuration time.Duration
	taskDeadline string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a pending task",
	Long: `Add a task for the engine to schedule.

Examples:
  chief task add "Write report" --priority high --duration 2h
  chief task add "Fix login bug" -p urgent -d 45m --deadline 2026-03-02T17:00`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("no storage configured")
		}

		var deadline *time.Time
		if taskDeadline != "" {
			parsed, err := parseDeadline(taskDeadline)
			if err != nil {
				return err
			}
			deadline = &parsed
		}

		title := strings.Join(args, " ")
		task, err := domain.NewTask(app.SessionID, title, domain.Priority(taskPriority), taskDuration, deadline)
		if err != nil {
			return err
		}
		if err := app.Tasks.Save(cmd.Context(), task); err != nil {
			return err
		}

		if app.Replanner != nil {
			app.Replanner.NotifyTaskAdded()
		}

		fmt.Printf("Added task %s (%s, %s)\n", task.ID(), task.Priority(), task.Duration())
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the session's tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("no storage configured")
		}

		tasks, err := app.Tasks.FindBySession(cmd.Context(), app.SessionID)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		for _, task := range tasks {
			slot := "-"
			if iv := task.Assigned(); iv != nil {
				slot = fmt.Sprintf("%s - %s", iv.Start.Format("Mon 15:04"), iv.End.Format("15:04"))
			}
			fmt.Printf("  %-36s  %-9s  %-10s  %-7s  %s\n",
				task.ID(), task.Status(), task.Priority(), task.Duration(), slot)
			fmt.Printf("    %s\n", task.Title())
		}
		return nil
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("no storage configured")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid task id: %w", err)
		}
		task, err := app.Tasks.FindByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		task.MarkCompleted()
		if err := app.Tasks.Save(cmd.Context(), task); err != nil {
			return err
		}

		fmt.Printf("Completed %q\n", task.Title())
		return nil
	},
}

// parseDeadline accepts a date or a date with a wall-clock time. Bare dates
// mean end of that working day.
func parseDeadline(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"} {
		if parsed, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return parsed, nil
		}
	}
	if parsed, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return parsed.Add(17 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("invalid deadline %q, use YYYY-MM-DD or YYYY-MM-DDTHH:MM", value)
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskPriority, "priority", "p", "medium", "priority (urgent, high, medium, low)")
	taskAddCmd.Flags().DurationVarP(&taskDuration, "duration", "d", 30*time.Minute, "estimated duration")
	taskAddCmd.Flags().StringVar(&taskDeadline, "deadline", "", "deadline (YYYY-MM-DD or YYYY-MM-DDTHH:MM)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	rootCmd.AddCommand(taskCmd)
}
