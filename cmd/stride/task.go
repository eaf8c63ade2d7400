package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
	"github.com/stridehq/stride/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "records",
	Short:   "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task in the local store.

The write returns immediately; a pending outbox entry is queued in the
same transaction and the push worker delivers it to the remote system
in the background.

Example:
  stride task add "File taxes" --due "next friday" --priority 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		priority, _ := cmd.Flags().GetInt("priority")
		dueFlag, _ := cmd.Flags().GetString("due")

		due, err := parseDate(dueFlag)
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

		task, err := st.CreateTask(context.Background(), store.TaskParams{
			Title:    args[0],
			Notes:    notes,
			Priority: priority,
			DueAt:    due,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Created task %d: %s (due %s)\n",
			ui.RenderSuccess("✓"), task.ID, task.Title, formatDate(task.DueAt))
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
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

		tasks, err := st.ListTasks(context.Background(), store.TaskFilter{
			Status: types.TaskStatus(statusFlag),
		})
		if err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println(ui.RenderMuted("No tasks."))
			return nil
		}

		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-5s %-3s %-12s %-10s %-6s %s",
			"ID", "P", "STATUS", "DUE", "SYNC", "TITLE")))
		for _, t := range tasks {
			fmt.Printf("%-5d %-3d %-12s %-10s %-6s %s\n",
				t.ID, t.Priority, t.Status, formatDate(t.DueAt), syncMarker(t.RemoteID), t.Title)
		}
		return nil
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Mark a task in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTaskStatus(args[0], types.TaskStatusInProgress, nil)
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		return setTaskStatus(args[0], types.TaskStatusDone, &now)
	},
}

func setTaskStatus(idArg string, status types.TaskStatus, completedAt *time.Time) error {
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

	task, err := st.UpdateTask(context.Background(), id, store.TaskUpdate{
		Status:      &status,
		CompletedAt: completedAt,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s Task %d is now %s\n", ui.RenderSuccess("✓"), task.ID, task.Status)
	return nil
}

// syncMarker shows at a glance whether a record has remote linkage yet.
func syncMarker(remoteID *string) string {
	if remoteID == nil {
		return ui.RenderMuted("local")
	}
	return ui.RenderSuccess("✓")
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	taskAddCmd.Flags().String("notes", "", "free-form notes")
	taskAddCmd.Flags().Int("priority", 2, "priority 0-4 (0=critical)")
	taskAddCmd.Flags().String("due", "", "due date (natural language or YYYY-MM-DD)")
	taskListCmd.Flags().String("status", "", "filter by status (todo, in_progress, done)")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskStartCmd, taskDoneCmd)
	rootCmd.AddCommand(taskCmd)
}
