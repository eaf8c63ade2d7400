package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/ui"
)

var habitCmd = &cobra.Command{
	Use:     "habit",
	GroupID: "records",
	Short:   "Manage habits",
	Long: `Manage daily habits and their streaks.

Habits live locally and receive remote updates on pull, but are never
pushed: the remote system has no habit write endpoint, so the push
worker skips their ledger entries and they stay pending.`,
}

var habitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		habit, err := st.CreateHabit(context.Background(), store.HabitParams{Name: args[0]})
		if err != nil {
			return err
		}

		fmt.Printf("%s Created habit %d: %s\n", ui.RenderSuccess("✓"), habit.ID, habit.Name)
		return nil
	},
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		habits, err := st.ListHabits(context.Background(), !all)
		if err != nil {
			return err
		}

		if len(habits) == 0 {
			fmt.Println(ui.RenderMuted("No habits."))
			return nil
		}

		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-5s %-7s %-12s %s",
			"ID", "STREAK", "LAST DONE", "NAME")))
		for _, h := range habits {
			last := "never"
			if h.LastCompletedAt != nil {
				last = h.LastCompletedAt.Local().Format("2006-01-02")
			}
			name := h.Name
			if !h.Active {
				name = ui.RenderMuted(name + " (paused)")
			}
			fmt.Printf("%-5d %-7d %-12s %s\n", h.ID, h.Streak, last, name)
		}
		return nil
	},
}

var habitDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Record a habit completion for today",
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

		habit, err := st.CompleteHabit(context.Background(), id)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s: streak %d\n", ui.RenderSuccess("✓"), habit.Name, habit.Streak)
		return nil
	},
}

var habitPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a habit without losing its streak",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setHabitActive(args[0], false)
	},
}

var habitResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused habit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setHabitActive(args[0], true)
	},
}

func setHabitActive(idArg string, active bool) error {
	id, err := parseID(idArg)
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

	habit, err := st.UpdateHabit(context.Background(), id, store.HabitUpdate{Active: &active})
	if err != nil {
		return err
	}

	verb := "paused"
	if active {
		verb = "resumed"
	}
	fmt.Printf("%s Habit %d %s: %s\n", ui.RenderSuccess("✓"), habit.ID, verb, habit.Name)
	return nil
}

func init() {
	habitListCmd.Flags().Bool("all", false, "include paused habits")

	habitCmd.AddCommand(habitAddCmd, habitListCmd, habitDoneCmd, habitPauseCmd, habitResumeCmd)
	rootCmd.AddCommand(habitCmd)
}
