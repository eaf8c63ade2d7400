package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
	"github.com/stridehq/stride/internal/ui"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "records",
	Short:   "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startFlag, _ := cmd.Flags().GetString("start")
		targetFlag, _ := cmd.Flags().GetString("target")

		start, err := parseDate(startFlag)
		if err != nil {
			return err
		}
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

		proj, err := st.CreateProject(context.Background(), store.ProjectParams{
			Name:      args[0],
			StartedAt: start,
			TargetAt:  target,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Created project %d: %s\n", ui.RenderSuccess("✓"), proj.ID, proj.Name)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
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

		projects, err := st.ListProjects(context.Background(), store.ProjectFilter{
			Status: types.ProjectStatus(statusFlag),
		})
		if err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Println(ui.RenderMuted("No projects."))
			return nil
		}

		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-5s %-10s %-9s %-10s %-6s %s",
			"ID", "STATUS", "PROGRESS", "TARGET", "SYNC", "NAME")))
		for _, p := range projects {
			fmt.Printf("%-5d %-10s %-9s %-10s %-6s %s\n",
				p.ID, p.Status, fmt.Sprintf("%d%%", p.Progress), formatDate(p.TargetAt),
				syncMarker(p.RemoteID), p.Name)
		}
		return nil
	},
}

var projectProgressCmd = &cobra.Command{
	Use:   "progress <id> <percent>",
	Short: "Update project progress (0-100)",
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

		update := store.ProjectUpdate{Progress: &pct}
		if pct >= 100 {
			done := types.ProjectStatusCompleted
			update.Status = &done
		}
		proj, err := st.UpdateProject(context.Background(), id, update)
		if err != nil {
			return err
		}

		fmt.Printf("%s Project %d: %d%% (%s)\n", ui.RenderSuccess("✓"), proj.ID, proj.Progress, proj.Status)
		return nil
	},
}

var projectHoldCmd = &cobra.Command{
	Use:   "hold <id>",
	Short: "Put a project on hold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProjectStatus(args[0], types.ProjectStatusOnHold)
	},
}

var projectResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume an on-hold project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProjectStatus(args[0], types.ProjectStatusActive)
	},
}

func setProjectStatus(idArg string, status types.ProjectStatus) error {
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

	proj, err := st.UpdateProject(context.Background(), id, store.ProjectUpdate{Status: &status})
	if err != nil {
		return err
	}

	fmt.Printf("%s Project %d is now %s\n", ui.RenderSuccess("✓"), proj.ID, proj.Status)
	return nil
}

func init() {
	projectAddCmd.Flags().String("start", "", "start date")
	projectAddCmd.Flags().String("target", "", "target completion date")
	projectListCmd.Flags().String("status", "", "filter by status (active, on_hold, completed, archived)")

	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectProgressCmd, projectHoldCmd, projectResumeCmd)
	rootCmd.AddCommand(projectCmd)
}
