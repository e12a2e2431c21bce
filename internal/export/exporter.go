// Package export owns the on-disk debug surface of the tracking core: an
// append-only interaction journal and point-in-time snapshot files. The core
// itself stays in-memory; everything here is an optional consumer.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/harunnryd/metsuke/internal/apicall"
	"github.com/harunnryd/metsuke/internal/config"
	metsukeErrors "github.com/harunnryd/metsuke/internal/errors"
	"github.com/harunnryd/metsuke/internal/interaction"
	"github.com/harunnryd/metsuke/internal/transform"
)

type InteractionSource interface {
	All() []*interaction.Interaction
}

type CallSource interface {
	Snapshot() []*apicall.Call
	Statistics() apicall.Stats
}

type TransformSource interface {
	All() []*transform.Entry
}

// Snapshot is the exported point-in-time view of the tracked data set.
type Snapshot struct {
	GeneratedAt     time.Time                  `json:"generated_at" yaml:"generated_at"`
	Interactions    []*interaction.Interaction `json:"interactions" yaml:"interactions"`
	Calls           []*apicall.Call            `json:"calls" yaml:"calls"`
	CallStatistics  apicall.Stats              `json:"call_statistics" yaml:"call_statistics"`
	Transformations []*transform.Entry         `json:"transformations" yaml:"transformations"`
}

type Exporter struct {
	dir    string
	format string

	lockTimeout  time.Duration
	lockRetry    time.Duration
	lockMaxRetry int

	interactions InteractionSource
	calls        CallSource
	transforms   TransformSource
}

func NewExporter(cfg config.ExportConfig, interactions InteractionSource, calls CallSource, transforms TransformSource) (*Exporter, error) {
	if cfg.Dir == "" {
		return nil, metsukeErrors.InvalidInput("export dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	format := cfg.Format
	if format == "" {
		format = config.DefaultExportFormat
	}
	if format != "json" && format != "yaml" {
		return nil, metsukeErrors.InvalidInput(fmt.Sprintf("unsupported export format: %s (supported: json, yaml)", format))
	}

	lockTimeout, err := config.DurationOrDefault(cfg.LockTimeout, config.DefaultExportLockTimeout)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse export lock timeout")
	}
	lockRetry, err := config.DurationOrDefault(cfg.LockRetry, config.DefaultExportLockRetry)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse export lock retry")
	}
	lockMaxRetry := cfg.LockMaxRetry
	if lockMaxRetry <= 0 {
		lockMaxRetry = config.DefaultExportLockMaxRetry
	}

	return &Exporter{
		dir:          cfg.Dir,
		format:       format,
		lockTimeout:  lockTimeout,
		lockRetry:    lockRetry,
		lockMaxRetry: lockMaxRetry,
		interactions: interactions,
		calls:        calls,
		transforms:   transforms,
	}, nil
}

// WriteSnapshot gathers the current state and writes one snapshot file
// atomically, returning its path. A directory lock serializes concurrent
// exporters so two snapshots never interleave.
func (e *Exporter) WriteSnapshot(ctx context.Context) (string, error) {
	release, err := e.acquireLock(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	snap := &Snapshot{
		GeneratedAt:    time.Now(),
		Interactions:   e.interactions.All(),
		Calls:          e.calls.Snapshot(),
		CallStatistics: e.calls.Statistics(),
	}
	if e.transforms != nil {
		snap.Transformations = e.transforms.All()
	}

	var data []byte
	switch e.format {
	case "yaml":
		data, err = yaml.Marshal(snap)
	default:
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("snapshot-%s.%s", ulid.Make().String(), e.format))
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	slog.Info("Snapshot written",
		"path", path,
		"interactions", len(snap.Interactions),
		"calls", len(snap.Calls),
	)
	return path, nil
}

func (e *Exporter) acquireLock(ctx context.Context) (func(), error) {
	lockPath := filepath.Join(e.dir, "export.lock")
	fileLock := flock.New(lockPath)

	deadline := time.Now().Add(e.lockTimeout)
	for i := 0; i < e.lockMaxRetry; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock acquisition cancelled: %w", ctx.Err())
		default:
		}

		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to attempt export lock: %w", err)
		}
		if locked {
			return func() {
				if err := fileLock.Unlock(); err != nil {
					slog.Error("Failed to release export lock", "path", lockPath, "error", err)
				}
			}, nil
		}

		if time.Now().After(deadline) {
			break
		}
		time.Sleep(e.lockRetry)
	}

	return nil, fmt.Errorf("export dir %s is locked by another exporter (timeout after %v)", e.dir, e.lockTimeout)
}
