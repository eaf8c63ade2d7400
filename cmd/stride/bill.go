package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/store"
	"github.com/stridehq/stride/internal/ui"
)

var billCmd = &cobra.Command{
	Use:     "bill",
	GroupID: "records",
	Short:   "Manage bills",
}

var billAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a bill",
	Long: `Create a bill in the local store.

Amounts are given in dollars and stored as integer cents.

Example:
  stride bill add "Electricity" --amount 84.20 --due "1st of next month"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amountFlag, _ := cmd.Flags().GetString("amount")
		dueFlag, _ := cmd.Flags().GetString("due")
		autoPay, _ := cmd.Flags().GetBool("autopay")

		cents, err := parseAmount(amountFlag)
		if err != nil {
			return err
		}
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

		bill, err := st.CreateBill(context.Background(), store.BillParams{
			Name:        args[0],
			AmountCents: cents,
			DueAt:       due,
			AutoPay:     autoPay,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Created bill %d: %s %s (due %s)\n",
			ui.RenderSuccess("✓"), bill.ID, bill.Name, formatCents(bill.AmountCents), formatDate(bill.DueAt))
		return nil
	},
}

var billListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bills",
	RunE: func(cmd *cobra.Command, args []string) error {
		unpaid, _ := cmd.Flags().GetBool("unpaid")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		bills, err := st.ListBills(context.Background(), store.BillFilter{Unpaid: unpaid})
		if err != nil {
			return err
		}

		if len(bills) == 0 {
			fmt.Println(ui.RenderMuted("No bills."))
			return nil
		}

		fmt.Println(ui.RenderHeader(fmt.Sprintf("%-5s %-10s %-10s %-6s %-6s %s",
			"ID", "AMOUNT", "DUE", "PAID", "SYNC", "NAME")))
		for _, b := range bills {
			paid := ui.RenderMuted("no")
			if b.Paid {
				paid = ui.RenderSuccess("yes")
			} else if b.DueAt != nil && b.DueAt.Before(time.Now()) {
				paid = ui.RenderError("OVERDUE")
			}
			fmt.Printf("%-5d %-10s %-10s %-6s %-6s %s\n",
				b.ID, formatCents(b.AmountCents), formatDate(b.DueAt), paid, syncMarker(b.RemoteID), b.Name)
		}
		return nil
	},
}

var billPayCmd = &cobra.Command{
	Use:   "pay <id>",
	Short: "Mark a bill paid",
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

		paid := true
		now := time.Now()
		bill, err := st.UpdateBill(context.Background(), id, store.BillUpdate{
			Paid:   &paid,
			PaidAt: &now,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Paid bill %d: %s %s\n",
			ui.RenderSuccess("✓"), bill.ID, bill.Name, formatCents(bill.AmountCents))
		return nil
	},
}

// parseAmount converts a dollar string like "84.20" to integer cents.
func parseAmount(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return 0, fmt.Errorf("--amount is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("amount cannot be negative")
	}
	return int64(f*100 + 0.5), nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func init() {
	billAddCmd.Flags().String("amount", "", "amount in dollars, e.g. 84.20")
	billAddCmd.Flags().String("due", "", "due date (natural language or YYYY-MM-DD)")
	billAddCmd.Flags().Bool("autopay", false, "bill is on auto-pay")
	billListCmd.Flags().Bool("unpaid", false, "show only unpaid bills")

	billCmd.AddCommand(billAddCmd, billListCmd, billPayCmd)
	rootCmd.AddCommand(billCmd)
}
