package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Sweep     SweepConfig     `koanf:"sweep"`
	Validator ValidatorConfig `koanf:"validator"`
	Export    ExportConfig    `koanf:"export"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

type TrackerConfig struct {
	CallTimeout     string `koanf:"call_timeout"`
	RetentionWindow string `koanf:"retention_window"`
	MaxBodyBytes    int    `koanf:"max_body_bytes"`
}

type SweepConfig struct {
	TickInterval    string  `koanf:"tick_interval"`
	Schedule        string  `koanf:"schedule"`
	ShutdownTimeout string  `koanf:"shutdown_timeout"`
	ScoreFloor      float64 `koanf:"score_floor"`
}

type ValidatorConfig struct {
	OrphanPenalty  float64 `koanf:"orphan_penalty"`
	ScoreThreshold float64 `koanf:"score_threshold"`
	GapThreshold   string  `koanf:"gap_threshold"`
	MaxGapFindings int     `koanf:"max_gap_findings"`
}

type ExportConfig struct {
	Dir          string `koanf:"dir"`
	Format       string `koanf:"format"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

const (
	DefaultServerLogLevel          = "info"
	DefaultTrackerCallTimeout      = "60s"
	DefaultTrackerRetentionWindow  = "2h"
	DefaultTrackerMaxBodyBytes     = 16 * 1024
	DefaultSweepTickInterval       = "5m"
	DefaultSweepSchedule           = ""
	DefaultSweepShutdownTimeout    = "30s"
	DefaultSweepScoreFloor         = 80.0
	DefaultValidatorOrphanPenalty  = 5.0
	DefaultValidatorScoreThreshold = 95.0
	DefaultValidatorGapThreshold   = "6h"
	DefaultValidatorMaxGapFindings = 5
	DefaultExportFormat            = "json"
	DefaultExportLockTimeout       = "30s"
	DefaultExportLockRetry         = "100ms"
	DefaultExportLockMaxRetry      = 300
	DefaultTelemetryEnabled        = false
	DefaultTelemetryServiceName    = "metsuke"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.log_level":           DefaultServerLogLevel,
		"tracker.call_timeout":       DefaultTrackerCallTimeout,
		"tracker.retention_window":   DefaultTrackerRetentionWindow,
		"tracker.max_body_bytes":     DefaultTrackerMaxBodyBytes,
		"sweep.tick_interval":        DefaultSweepTickInterval,
		"sweep.schedule":             DefaultSweepSchedule,
		"sweep.shutdown_timeout":     DefaultSweepShutdownTimeout,
		"sweep.score_floor":          DefaultSweepScoreFloor,
		"validator.orphan_penalty":   DefaultValidatorOrphanPenalty,
		"validator.score_threshold":  DefaultValidatorScoreThreshold,
		"validator.gap_threshold":    DefaultValidatorGapThreshold,
		"validator.max_gap_findings": DefaultValidatorMaxGapFindings,
		"export.dir":                 filepath.Join(os.Getenv("HOME"), ".metsuke", "exports"),
		"export.format":              DefaultExportFormat,
		"export.lock_timeout":        DefaultExportLockTimeout,
		"export.lock_retry":          DefaultExportLockRetry,
		"export.lock_max_retry":      DefaultExportLockMaxRetry,
		"telemetry.enabled":          DefaultTelemetryEnabled,
		"telemetry.service_name":     DefaultTelemetryServiceName,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".metsuke", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("METSUKE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "METSUKE_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
