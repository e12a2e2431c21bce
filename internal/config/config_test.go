package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != DefaultServerLogLevel {
		t.Errorf("Expected default log level %s, got %s", DefaultServerLogLevel, cfg.Server.LogLevel)
	}
	if cfg.Tracker.CallTimeout != DefaultTrackerCallTimeout {
		t.Errorf("Expected default call timeout %s, got %s", DefaultTrackerCallTimeout, cfg.Tracker.CallTimeout)
	}
	if cfg.Tracker.RetentionWindow != DefaultTrackerRetentionWindow {
		t.Errorf("Expected default retention window %s, got %s", DefaultTrackerRetentionWindow, cfg.Tracker.RetentionWindow)
	}
	if cfg.Tracker.MaxBodyBytes != DefaultTrackerMaxBodyBytes {
		t.Errorf("Expected default max body bytes %d, got %d", DefaultTrackerMaxBodyBytes, cfg.Tracker.MaxBodyBytes)
	}
	if cfg.Sweep.TickInterval != DefaultSweepTickInterval {
		t.Errorf("Expected default sweep tick interval %s, got %s", DefaultSweepTickInterval, cfg.Sweep.TickInterval)
	}
	if cfg.Sweep.ShutdownTimeout != DefaultSweepShutdownTimeout {
		t.Errorf("Expected default sweep shutdown timeout %s, got %s", DefaultSweepShutdownTimeout, cfg.Sweep.ShutdownTimeout)
	}
	if cfg.Sweep.ScoreFloor != DefaultSweepScoreFloor {
		t.Errorf("Expected default sweep score floor %f, got %f", DefaultSweepScoreFloor, cfg.Sweep.ScoreFloor)
	}
	if cfg.Validator.OrphanPenalty != DefaultValidatorOrphanPenalty {
		t.Errorf("Expected default orphan penalty %f, got %f", DefaultValidatorOrphanPenalty, cfg.Validator.OrphanPenalty)
	}
	if cfg.Validator.ScoreThreshold != DefaultValidatorScoreThreshold {
		t.Errorf("Expected default score threshold %f, got %f", DefaultValidatorScoreThreshold, cfg.Validator.ScoreThreshold)
	}
	if cfg.Validator.GapThreshold != DefaultValidatorGapThreshold {
		t.Errorf("Expected default gap threshold %s, got %s", DefaultValidatorGapThreshold, cfg.Validator.GapThreshold)
	}
	if cfg.Validator.MaxGapFindings != DefaultValidatorMaxGapFindings {
		t.Errorf("Expected default max gap findings %d, got %d", DefaultValidatorMaxGapFindings, cfg.Validator.MaxGapFindings)
	}
	if cfg.Export.Format != DefaultExportFormat {
		t.Errorf("Expected default export format %s, got %s", DefaultExportFormat, cfg.Export.Format)
	}
	if cfg.Export.LockTimeout != DefaultExportLockTimeout {
		t.Errorf("Expected default export lock timeout %s, got %s", DefaultExportLockTimeout, cfg.Export.LockTimeout)
	}
	if cfg.Export.LockMaxRetry != DefaultExportLockMaxRetry {
		t.Errorf("Expected default export lock max retry %d, got %d", DefaultExportLockMaxRetry, cfg.Export.LockMaxRetry)
	}
	if cfg.Telemetry.Enabled != DefaultTelemetryEnabled {
		t.Errorf("Expected default telemetry enabled %v, got %v", DefaultTelemetryEnabled, cfg.Telemetry.Enabled)
	}
	if cfg.Telemetry.ServiceName != DefaultTelemetryServiceName {
		t.Errorf("Expected default telemetry service name %s, got %s", DefaultTelemetryServiceName, cfg.Telemetry.ServiceName)
	}
}

func TestLoadWithConfigFlag(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
server:
  log_level: debug
tracker:
  call_timeout: 90s
validator:
  orphan_penalty: 2.5
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("failed to load config with --config: %v", err)
	}

	if cfg.Server.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %s", cfg.Server.LogLevel)
	}
	if cfg.Tracker.CallTimeout != "90s" {
		t.Fatalf("expected call timeout 90s, got %s", cfg.Tracker.CallTimeout)
	}
	if cfg.Validator.OrphanPenalty != 2.5 {
		t.Fatalf("expected orphan penalty 2.5, got %f", cfg.Validator.OrphanPenalty)
	}
	// Untouched sections keep their defaults.
	if cfg.Sweep.TickInterval != DefaultSweepTickInterval {
		t.Fatalf("expected sweep tick interval %s, got %s", DefaultSweepTickInterval, cfg.Sweep.TickInterval)
	}
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	if _, err := Load(cmd); err == nil {
		t.Fatal("expected error when --config points to missing file")
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "60s")
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	if d != 60*time.Second {
		t.Fatalf("expected 60s, got %s", d)
	}

	d, err = DurationOrDefault("250ms", "60s")
	if err != nil {
		t.Fatalf("parse explicit: %v", err)
	}
	if d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", d)
	}

	if _, err := DurationOrDefault("not-a-duration", "60s"); err == nil {
		t.Fatal("expected error for malformed duration")
	}
	if _, err := DurationOrDefault("", ""); err == nil {
		t.Fatal("expected error when both values empty")
	}
}
