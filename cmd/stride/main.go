// Command stride keeps a local store of tasks, bills, projects, goals, and
// habits in sync with a remote system of record.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/config"
	"github.com/stridehq/stride/internal/store"
)

var (
	cfgPath string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Local-first productivity records synced to a remote system of record",
	Long: `stride keeps tasks, bills, projects, goals, and habits in a local
SQLite store and reconciles them with a remote system of record in the
background: local writes are queued in an outbox and pushed out, remote
edits are polled and applied with last-write-wins.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Record commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "ops", Title: "Operational commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./stride.toml, ~/.stride/stride.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration with CLI flag overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// openStore opens the configured database and initializes the schema.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}

// parseDate accepts natural-language dates ("tomorrow", "next friday")
// as well as YYYY-MM-DD.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return &t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return nil, fmt.Errorf("could not understand date %q", s)
	}
	return &r.Time, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}
