// Package sweep owns the periodic maintenance pass: timeout detection and
// retention cleanup on the call tracker, plus an optional cron-scheduled deep
// audit. Detection is poll-based, so real-world timeout latency is bounded by
// one tick interval.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harunnryd/metsuke/internal/apicall"
	"github.com/harunnryd/metsuke/internal/audit"
	"github.com/harunnryd/metsuke/internal/concurrency"
	"github.com/harunnryd/metsuke/internal/config"
	metsukeErrors "github.com/harunnryd/metsuke/internal/errors"
)

type Component interface {
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) error
}

// Maintainer is the slice of the call tracker the sweep drives.
type Maintainer interface {
	CheckTimeouts() []*apicall.Call
	Cleanup(now time.Time) int
}

// Auditor is the slice of the completeness validator used by deep passes.
type Auditor interface {
	Validate() *audit.Report
	ValidateComprehensive() (*audit.Report, error)
}

type Engine struct {
	calls   Maintainer
	auditor Auditor

	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	running       bool
	ticker        *time.Ticker
	inFlightTicks uint

	tickInterval    time.Duration
	shutdownTimeout time.Duration
	scoreFloor      float64

	deepSchedule cron.Schedule
	nextDeepRun  time.Time
}

func NewEngine(calls Maintainer, auditor Auditor, cfg config.SweepConfig) (*Engine, error) {
	tickInterval, err := config.DurationOrDefault(cfg.TickInterval, config.DefaultSweepTickInterval)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse sweep tick interval")
	}

	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSweepShutdownTimeout)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse sweep shutdown timeout")
	}

	scoreFloor := cfg.ScoreFloor
	if scoreFloor <= 0 {
		scoreFloor = config.DefaultSweepScoreFloor
	}

	e := &Engine{
		calls:           calls,
		auditor:         auditor,
		tickInterval:    tickInterval,
		shutdownTimeout: shutdownTimeout,
		scoreFloor:      scoreFloor,
	}

	if schedule := strings.TrimSpace(cfg.Schedule); schedule != "" {
		deepSchedule, err := cron.ParseStandard(schedule)
		if err != nil {
			return nil, metsukeErrors.InvalidInput(fmt.Sprintf("invalid sweep schedule %q: %v", schedule, err))
		}
		e.deepSchedule = deepSchedule
	}

	return e, nil
}

func (e *Engine) Init(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if e.deepSchedule != nil {
		e.nextDeepRun = e.deepSchedule.Next(time.Now())
	}

	slog.Info("Sweep engine initialized", "tick_interval", e.tickInterval)
	return nil
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	e.ticker = time.NewTicker(e.tickInterval)

	concurrency.SafeGo(func() {
		e.run()
	}, nil)

	slog.Info("Sweep engine started")
	return nil
}

// Stop halts the sweep deterministically: the ticker is stopped, the loop is
// cancelled, and any in-flight tick is waited for up to the shutdown timeout.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	if e.ticker != nil {
		e.ticker.Stop()
	}

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.waitForInFlightTicks()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Sweep engine stopped gracefully")
		return nil
	case <-time.After(e.shutdownTimeout):
		slog.Warn("Sweep engine shutdown timeout, force stopping")
		return metsukeErrors.Internal("shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Health(ctx context.Context) error {
	if e.ctx == nil {
		return metsukeErrors.Internal("sweep engine not initialized")
	}
	if !e.IsRunning() {
		return metsukeErrors.Internal("sweep engine not running")
	}
	return nil
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) run() {
	for {
		select {
		case <-e.ticker.C:
			e.onTick()
		case <-e.ctx.Done():
			slog.Info("Sweep engine run loop stopped")
			return
		}
	}
}

func (e *Engine) onTick() {
	e.mu.Lock()
	e.inFlightTicks++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlightTicks--
		e.mu.Unlock()
	}()

	e.Sweep()

	if e.deepDue() {
		e.deepPass()
	}
}

// Sweep performs one maintenance pass: timeout detection, then retention
// cleanup. Exposed so callers and tests can force a pass without waiting a
// tick.
func (e *Engine) Sweep() {
	timedOut := e.calls.CheckTimeouts()
	for _, call := range timedOut {
		slog.Warn("API call timed out",
			"call_id", call.CallID,
			"interaction_id", call.InteractionID,
			"endpoint", call.Endpoint,
			"timeout", call.Timeout,
		)
	}

	e.calls.Cleanup(time.Now())
}

func (e *Engine) deepDue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deepSchedule == nil {
		return false
	}
	now := time.Now()
	if now.Before(e.nextDeepRun) {
		return false
	}
	e.nextDeepRun = e.deepSchedule.Next(now)
	return true
}

func (e *Engine) deepPass() {
	if e.auditor == nil {
		return
	}

	report, err := e.auditor.ValidateComprehensive()
	if err != nil {
		slog.Error("Comprehensive validation failed, falling back to quick audit", "error", err)
		report = e.auditor.Validate()
	}

	if report.IntegrityScore < e.scoreFloor {
		slog.Warn("Integrity score below floor",
			"score", report.IntegrityScore,
			"floor", e.scoreFloor,
			"orphaned_calls", len(report.OrphanedAPICalls),
			"missing_interactions", len(report.MissingInteractions),
		)
		for _, rec := range report.Recommendations {
			slog.Warn("Audit recommendation", "finding", rec)
		}
		return
	}

	slog.Debug("Deep audit pass complete", "score", report.IntegrityScore)
}

func (e *Engine) waitForInFlightTicks() {
	for {
		e.mu.RLock()
		inFlight := e.inFlightTicks
		e.mu.RUnlock()

		if inFlight == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
