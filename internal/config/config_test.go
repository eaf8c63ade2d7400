package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if cfg.PushInterval != 30*time.Second {
		t.Errorf("expected push interval 30s, got %s", cfg.PushInterval)
	}
	if cfg.PullInterval != 15*time.Minute {
		t.Errorf("expected pull interval 15m, got %s", cfg.PullInterval)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected batch size 10, got %d", cfg.BatchSize)
	}
	if cfg.InterCallDelay != 350*time.Millisecond {
		t.Errorf("expected inter-call delay 350ms, got %s", cfg.InterCallDelay)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.BreakerFailureThreshold != 5 || cfg.BreakerSuccessThreshold != 2 {
		t.Errorf("expected breaker thresholds 5/2, got %d/%d",
			cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold)
	}
	if cfg.BreakerOpenDuration != 30*time.Second {
		t.Errorf("expected breaker open duration 30s, got %s", cfg.BreakerOpenDuration)
	}
	if cfg.DashboardPort != 8080 {
		t.Errorf("expected dashboard port 8080, got %d", cfg.DashboardPort)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stride.toml")
	content := `
db_path = "/tmp/custom.db"
dashboard_port = 9000

[remote]
base_url = "https://api.example.com"
token = "tok-123"

[sync]
push_interval = "10s"
batch_size = 25
inter_call_delay = "100ms"

[breaker]
disabled = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("expected custom db path, got %s", cfg.DBPath)
	}
	if cfg.DashboardPort != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.DashboardPort)
	}
	if cfg.RemoteBaseURL != "https://api.example.com" {
		t.Errorf("expected remote base url, got %s", cfg.RemoteBaseURL)
	}
	if cfg.RemoteToken != "tok-123" {
		t.Errorf("expected remote token, got %s", cfg.RemoteToken)
	}
	if cfg.PushInterval != 10*time.Second {
		t.Errorf("expected push interval 10s, got %s", cfg.PushInterval)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", cfg.BatchSize)
	}
	if cfg.InterCallDelay != 100*time.Millisecond {
		t.Errorf("expected inter-call delay 100ms, got %s", cfg.InterCallDelay)
	}
	if !cfg.BreakerDisabled {
		t.Error("expected breaker disabled")
	}

	// Unset keys keep their defaults.
	if cfg.PullInterval != 15*time.Minute {
		t.Errorf("expected default pull interval, got %s", cfg.PullInterval)
	}

	if cfg.Path() != path {
		t.Errorf("expected loaded path %s, got %s", path, cfg.Path())
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
