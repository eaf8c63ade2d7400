package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/types"
	"github.com/stridehq/stride/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "ops",
	Short:   "Show sync ledger summary",
	Long: `Show the current state of the sync ledger.

A record that keeps failing to push is only visible here and in
'stride outbox list'; sync is background and best-effort, so nothing
else surfaces the failure.`,
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

		counts, err := st.CountOutboxByStatus(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s\n\n", ui.RenderMuted(cfg.DBPath))
		fmt.Println(ui.RenderHeader("Sync ledger"))
		for _, status := range []types.SyncStatus{
			types.StatusPending, types.StatusSynced, types.StatusFailed, types.StatusConflict,
		} {
			n := counts[status]
			line := fmt.Sprintf("  %-10s %d", status, n)
			switch {
			case status == types.StatusFailed && n > 0:
				fmt.Println(ui.RenderError(line))
			case status == types.StatusPending && n > 0:
				fmt.Println(ui.RenderWarn(line))
			default:
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
