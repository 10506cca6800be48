package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chiefhq/chief/internal/scheduling/domain"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage scheduling preferences",
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <text>",
	Short: "Update preferences from free text",
	Long: `Parse free-text preferences into constraint rules and activate
them. Rules of the same kind replace each other; a line the parser cannot
read rejects the whole update and keeps the previous rules.

Examples:
  chief prefs set "No meetings after 6pm"
  chief prefs set "deep work in the morning" "45 min lunch break"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Extractor == nil {
			return fmt.Errorf("no extractor configured")
		}
		if app.Replanner == nil {
			return fmt.Errorf("engine not configured")
		}

		rules, err := app.Extractor.Extract(strings.Join(args, "\n"))
		if err != nil {
			return fmt.Errorf("parse preferences: %w", err)
		}
		if len(rules) == 0 {
			fmt.Println("No scheduling rules recognized; nothing changed.")
			return nil
		}

		if err := app.Replanner.UpdateRules(rules...); err != nil {
			return fmt.Errorf("apply preferences: %w", err)
		}

		fmt.Printf("Applied %d rule(s):\n", len(rules))
		for _, rule := range rules {
			fmt.Printf("  %s\n", describeRule(rule))
		}
		return nil
	},
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active constraint rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Replanner == nil {
			return fmt.Errorf("engine not configured")
		}

		rules := app.Replanner.Rules()
		if rules.Len() == 0 {
			fmt.Println("No active rules.")
			return nil
		}
		for _, kind := range []domain.RuleKind{
			domain.RuleTimeWindowBlock,
			domain.RuleTimeWindowPrefer,
			domain.RuleMinBreak,
			domain.RuleMaxContinuousWork,
		} {
			if rule, ok := rules.Rule(kind); ok {
				fmt.Printf("  %s\n", describeRule(rule))
			}
		}
		return nil
	},
}

func describeRule(rule domain.Rule) string {
	switch rule.Kind {
	case domain.RuleTimeWindowBlock:
		return fmt.Sprintf("block %s-%s  (%s)",
			clockString(rule.Window.StartMinute), clockString(rule.Window.EndMinute), rule.Source)
	case domain.RuleTimeWindowPrefer:
		return fmt.Sprintf("prefer %s-%s  (%s)",
			clockString(rule.Window.StartMinute), clockString(rule.Window.EndMinute), rule.Source)
	case domain.RuleMinBreak:
		return fmt.Sprintf("min break %dm  (%s)", rule.Minutes, rule.Source)
	case domain.RuleMaxContinuousWork:
		return fmt.Sprintf("max continuous work %dm  (%s)", rule.Minutes, rule.Source)
	}
	return string(rule.Kind)
}

func clockString(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func init() {
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	rootCmd.AddCommand(prefsCmd)
}
