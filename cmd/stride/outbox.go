package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/types"
	"github.com/stridehq/stride/internal/ui"
)

var outboxCmd = &cobra.Command{
	Use:     "outbox",
	GroupID: "ops",
	Short:   "Inspect the sync ledger",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger entries by status and domain",
	Long: `List sync ledger entries for manual inspection.

The ledger records every intended mutation: pending entries await the
push worker, synced/failed entries are terminal, and remote_to_local
entries are audit rows written by the pull worker. There is no mutation
path through this command; only the workers change entry status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		domainFlag, _ := cmd.Flags().GetString("domain")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.OutboxFilter{Limit: limit}
		if statusFlag != "" {
			filter.Status = types.SyncStatus(statusFlag)
		}
		if domainFlag != "" {
			d, err := types.ParseDomain(domainFlag)
			if err != nil {
				return err
			}
			filter.Domain = d
		}

		entries, err := st.ListOutbox(context.Background(), filter)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println(ui.RenderMuted("No ledger entries match."))
			return nil
		}

		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-6s %-8s %-16s %-7s %-8s %-20s %s",
			"ID", "DOMAIN", "DIRECTION", "ACTION", "STATUS", "CREATED", "ERROR")))
		for _, e := range entries {
			errMsg := ""
			if e.ErrorMessage != nil {
				errMsg = *e.ErrorMessage
			}
			line := fmt.Sprintf("%-6d %-8s %-16s %-7s %-8s %-20s %s",
				e.ID, e.Domain, e.Direction, e.Action, e.Status,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), errMsg)
			switch e.Status {
			case types.StatusFailed:
				fmt.Println(ui.RenderError(line))
			case types.StatusPending:
				fmt.Println(ui.RenderWarn(line))
			default:
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	outboxListCmd.Flags().String("status", "", "filter by status (pending, synced, failed, conflict)")
	outboxListCmd.Flags().String("domain", "", "filter by domain (task, bill, project, goal, habit)")
	outboxListCmd.Flags().Int("limit", 50, "maximum entries to show")
	outboxCmd.AddCommand(outboxListCmd)
	rootCmd.AddCommand(outboxCmd)
}
