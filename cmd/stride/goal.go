package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
	"github.com/stridehq/stride/internal/ui"
)

var goalCmd = &cobra.Command{
	Use:     "goal",
	GroupID: "records",
	Short:   "Manage goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetFlag, _ := cmd.Flags().GetString("target")

		target, err := parseDate(targetFlag)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		goal, err := st.CreateGoal(context.Background(), store.GoalParams{
			Title:    args[0],
			TargetAt: target,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Created goal %d: %s (target %s)\n",
			ui.RenderSuccess("✓"), goal.ID, goal.Title, formatDate(goal.TargetAt))
		return nil
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		goals, err := st.ListGoals(context.Background(), types.GoalStatus(statusFlag))
		if err != nil {
			return err
		}

		if len(goals) == 0 {
			fmt.Println(ui.RenderMuted("No goals."))
			return nil
		}

		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-5s %-10s %-9s %-10s %-6s %s",
			"ID", "STATUS", "PROGRESS", "TARGET", "SYNC", "TITLE")))
		for _, g := range goals {
			fmt.Printf("%-5d %-10s %-9s %-10s %-6s %s\n",
				g.ID, g.Status, fmt.Sprintf("%d%%", g.Progress), formatDate(g.TargetAt),
				syncMarker(g.RemoteID), g.Title)
		}
		return nil
	},
}

var goalProgressCmd = &cobra.Command{
	Use:   "progress <id> <percent>",
	Short: "Update goal progress (0-100)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var pct int
		if _, err := fmt.Sscanf(args[1], "%d", &pct); err != nil {
			return fmt.Errorf("invalid progress %q", args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		update := store.GoalUpdate{Progress: &pct}
		if pct >= 100 {
			achieved := types.GoalStatusAchieved
			update.Status = &achieved
		}
		goal, err := st.UpdateGoal(context.Background(), id, update)
		if err != nil {
			return err
		}

		if goal.Status == types.GoalStatusAchieved {
			fmt.Printf("%s Goal %d achieved: %s\n", ui.RenderSuccess("★"), goal.ID, goal.Title)
		} else {
			fmt.Printf("%s Goal %d: %d%%\n", ui.RenderSuccess("✓"), goal.ID, goal.Progress)
		}
		return nil
	},
}

var goalAbandonCmd = &cobra.Command{
	Use:   "abandon <id>",
	Short: "Abandon a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		abandoned := types.GoalStatusAbandoned
		goal, err := st.UpdateGoal(context.Background(), id, store.GoalUpdate{Status: &abandoned})
		if err != nil {
			return err
		}

		fmt.Printf("%s Goal %d abandoned: %s\n", ui.RenderMuted("✗"), goal.ID, goal.Title)
		return nil
	},
}

func init() {
	goalAddCmd.Flags().String("target", "", "target date")
	goalListCmd.Flags().String("status", "", "filter by status (active, achieved, abandoned)")

	goalCmd.AddCommand(goalAddCmd, goalListCmd, goalProgressCmd, goalAbandonCmd)
	rootCmd.AddCommand(goalCmd)
}
