package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stridehq/stride/internal/config"
	"github.com/stridehq/stride/internal/dashboard"
	"github.com/stridehq/stride/internal/engine"
	"github.com/stridehq/stride/internal/logging"
	"github.com/stridehq/stride/internal/remote"
	"github.com/stridehq/stride/internal/resilience"
	"github.com/stridehq/stride/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run the sync daemon (push/pull workers + dashboard)",
	Long: `Run the background sync engine and the operator dashboard.

The daemon:
  1. Performs one immediate push cycle, then pushes every push interval
  2. Polls the remote system every pull interval and applies
     last-write-wins updates locally
  3. Serves a WebSocket dashboard with sync events and a /health
     endpoint reporting circuit-breaker state

Example usage:
  stride serve                     # Use config defaults
  stride serve --port 9000         # Dashboard on a custom port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port != 0 {
			cfg.DashboardPort = port
		}
		if cfg.RemoteBaseURL == "" {
			return fmt.Errorf("remote.base_url is not configured (set it in stride.toml or STRIDE_REMOTE_BASE_URL)")
		}

		logWriter := logging.Writer(cfg.LogFile)

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

		// One registry, owned here, shared by the engine and /health.
		registry := resilience.NewRegistry(resilience.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			OpenDuration:     cfg.BreakerOpenDuration,
			Disabled:         cfg.BreakerDisabled,
		})

		dash := dashboard.NewServer(&dashboard.Config{
			Port:     cfg.DashboardPort,
			Registry: registry,
			Logger:   logging.New(logWriter, "dashboard"),
		})

		engineCfg := &engine.Config{
			PushInterval:   cfg.PushInterval,
			PullInterval:   cfg.PullInterval,
			BatchSize:      cfg.BatchSize,
			InterCallDelay: cfg.InterCallDelay,
			RetryPolicy: resilience.Policy{
				MaxAttempts:  cfg.RetryMaxAttempts,
				InitialDelay: cfg.RetryInitialDelay,
				MaxDelay:     cfg.RetryMaxDelay,
			},
			Logger: logging.New(logWriter, "engine"),
			OnCycle: func(s engine.CycleSummary) {
				typ := dashboard.MessageTypePushCycle
				if s.Kind == "pull" {
					typ = dashboard.MessageTypePullCycle
				}
				dash.BroadcastEvent(typ, s)
			},
		}

		eng := engine.New(st, client, registry, engineCfg)

		if err := dash.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		eng.Start()

		// Hot-reload the engine tuning knobs when the config file changes.
		var watcher *config.Watcher
		if cfg.Path() != "" {
			watcher, err = config.NewWatcher(cfg.Path(), logging.New(logWriter, "config"), func(next *config.Config) {
				eng.Tune(engine.Tuning{
					BatchSize:      next.BatchSize,
					InterCallDelay: next.InterCallDelay,
					PushInterval:   next.PushInterval,
					PullInterval:   next.PullInterval,
				})
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: config watch disabled: %v\n", err)
			} else if err := watcher.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: config watch disabled: %v\n", err)
				watcher = nil
			}
		}

		fmt.Printf("%s Sync daemon started\n", ui.RenderAccent("▸"))
		fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", cfg.DashboardPort, cfg.DashboardPort)
		fmt.Printf("Health check: http://localhost:%d/health\n", cfg.DashboardPort)
		fmt.Println("\nPress Ctrl+C to stop...")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		if watcher != nil {
			watcher.Stop()
		}
		eng.Stop()
		if err := dash.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: dashboard shutdown: %v\n", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "dashboard port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
