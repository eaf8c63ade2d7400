package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/engine"
	"github.com/stridehq/stride/internal/logging"
	"github.com/stridehq/stride/internal/remote"
	"github.com/stridehq/stride/internal/resilience"
	"github.com/stridehq/stride/internal/ui"
)

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Run one push cycle (drain pending outbox entries)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneCycle("push")
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Run one pull cycle (apply newer remote edits locally)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneCycle("pull")
	},
}

// runOneCycle builds a throwaway engine and executes a single cycle
// synchronously, for operators and cron-style setups.
func runOneCycle(kind string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RemoteBaseURL == "" {
		return fmt.Errorf("remote.base_url is not configured")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := remote.NewHTTPClient(remote.HTTPConfig{
		BaseURL: cfg.RemoteBaseURL,
		Token:   cfg.RemoteToken,
		Timeout: cfg.RemoteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create remote client: %w", err)
	}

	registry := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		OpenDuration:     cfg.BreakerOpenDuration,
		Disabled:         cfg.BreakerDisabled,
	})

	engineCfg := engine.DefaultConfig()
	engineCfg.BatchSize = cfg.BatchSize
	engineCfg.InterCallDelay = cfg.InterCallDelay
	engineCfg.RetryPolicy = resilience.Policy{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
	}
	engineCfg.Logger = logging.New(logging.Writer(cfg.LogFile), "engine")

	eng := engine.New(st, client, registry, engineCfg)

	var (
		summary engine.CycleSummary
		detail  string
	)
	if kind == "push" {
		summary = eng.RunPushCycle(context.Background())
		detail = fmt.Sprintf("processed=%d", summary.Processed)
	} else {
		summary = eng.RunPullCycle(context.Background())
		detail = fmt.Sprintf("fetched=%d applied=%d", summary.Fetched, summary.Applied)
	}

	if summary.Errors > 0 {
		fmt.Printf("%s %s cycle finished with errors: %s errors=%d (%s)\n",
			ui.RenderWarn("!"), kind, detail, summary.Errors, summary.Duration)
	} else {
		fmt.Printf("%s %s cycle complete: %s (%s)\n",
			ui.RenderSuccess("✓"), kind, detail, summary.Duration)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}
