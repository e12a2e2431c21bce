// Package metsuke is an in-process observability core for AI operations. It
// tracks the lifecycle of logical interactions, correlates them with the
// network calls they issue, detects calls that silently time out, and audits
// the completeness of the whole data set.
//
// The core performs no network I/O, never retries or cancels a call, and
// never fails in a way that could abort the caller's primary AI path; it only
// observes and reports.
package metsuke

import (
	"context"
	"time"

	"github.com/harunnryd/metsuke/internal/apicall"
	"github.com/harunnryd/metsuke/internal/audit"
	"github.com/harunnryd/metsuke/internal/config"
	metsukeErrors "github.com/harunnryd/metsuke/internal/errors"
	"github.com/harunnryd/metsuke/internal/export"
	"github.com/harunnryd/metsuke/internal/interaction"
	"github.com/harunnryd/metsuke/internal/logger"
	"github.com/harunnryd/metsuke/internal/sweep"
	"github.com/harunnryd/metsuke/internal/telemetry"
	"github.com/harunnryd/metsuke/internal/transform"
)

// Hub is an isolated instance of the tracking core. Construct one per tenant
// or per test; there is no package-level shared state.
type Hub struct {
	Interactions *interaction.Tracker
	Calls        *apicall.Tracker
	Transforms   *transform.Log
	Auditor      *audit.Validator
	Sweeper      *sweep.Engine

	telemetryEnabled  bool
	telemetryShutdown func(context.Context) error
}

// New wires a Hub from configuration. The sweep engine is constructed but not
// started; call Start to begin periodic maintenance.
func New(cfg *config.Config) (*Hub, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}

	callTimeout, err := config.DurationOrDefault(cfg.Tracker.CallTimeout, config.DefaultTrackerCallTimeout)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse call timeout")
	}
	retention, err := config.DurationOrDefault(cfg.Tracker.RetentionWindow, config.DefaultTrackerRetentionWindow)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse retention window")
	}
	gapThreshold, err := config.DurationOrDefault(cfg.Validator.GapThreshold, config.DefaultValidatorGapThreshold)
	if err != nil {
		return nil, metsukeErrors.Wrap(err, "parse gap threshold")
	}

	interactions := interaction.NewTracker()
	calls := apicall.NewTracker(interactions, apicall.TrackerOptions{
		DefaultTimeout:  callTimeout,
		RetentionWindow: retention,
		MaxBodyBytes:    cfg.Tracker.MaxBodyBytes,
	})
	transforms := transform.NewLog()

	auditor := audit.NewValidator(interactions, calls, transforms, audit.Options{
		OrphanPenalty:  cfg.Validator.OrphanPenalty,
		ScoreThreshold: cfg.Validator.ScoreThreshold,
		GapThreshold:   gapThreshold,
		MaxGapFindings: cfg.Validator.MaxGapFindings,
	})

	sweeper, err := sweep.NewEngine(calls, auditor, cfg.Sweep)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		Interactions: interactions,
		Calls:        calls,
		Transforms:   transforms,
		Auditor:      auditor,
		Sweeper:      sweeper,
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName)
		if err != nil {
			return nil, metsukeErrors.Wrap(err, "init telemetry")
		}
		h.telemetryEnabled = true
		h.telemetryShutdown = shutdown
	}

	return h, nil
}

// SetDestination attaches the destination that terminal interactions flush
// to. When telemetry is enabled, records pass through the span mirror first.
func (h *Hub) SetDestination(dest interaction.Destination) {
	if h.telemetryEnabled {
		dest = telemetry.NewSpanMirror(dest)
	}
	h.Interactions.SetDestination(dest)
}

// EnableJournal creates an append-only JSONL journal under dir and attaches
// it as the destination. Buffered records flush into it in original order.
func (h *Hub) EnableJournal(dir string) (*export.Journal, error) {
	journal, err := export.NewJournal(dir)
	if err != nil {
		return nil, err
	}
	h.SetDestination(journal)
	return journal, nil
}

// NewExporter builds a snapshot exporter over this hub's trackers.
func (h *Hub) NewExporter(cfg config.ExportConfig) (*export.Exporter, error) {
	return export.NewExporter(cfg, h.Interactions, h.Calls, h.Transforms)
}

// Start begins the periodic sweep (timeout detection + retention cleanup).
func (h *Hub) Start(ctx context.Context) error {
	if err := h.Sweeper.Init(ctx); err != nil {
		return err
	}
	return h.Sweeper.Start(ctx)
}

// Stop halts the sweep deterministically and shuts down telemetry if it was
// enabled.
func (h *Hub) Stop(ctx context.Context) error {
	err := h.Sweeper.Stop(ctx)
	if h.telemetryShutdown != nil {
		if terr := h.telemetryShutdown(ctx); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// StartInteraction records a new pending interaction and returns its id.
func (h *Hub) StartInteraction(typ interaction.Type, provider, model string, input interaction.Input, corr interaction.Correlation) string {
	return h.Interactions.Start(typ, provider, model, input, corr)
}

// StartInteractionContext is StartInteraction plus context stamping: the
// returned context carries the interaction id (and session id, when one is
// known) so downstream call sites can correlate without threading ids by
// hand. An empty corr.SessionID falls back to the session already on ctx.
func (h *Hub) StartInteractionContext(ctx context.Context, typ interaction.Type, provider, model string, input interaction.Input, corr interaction.Correlation) (context.Context, string) {
	if corr.SessionID == "" {
		corr.SessionID = logger.GetSessionID(ctx)
	}
	id := h.Interactions.Start(typ, provider, model, input, corr)
	ctx = logger.WithInteractionID(ctx, id)
	if corr.SessionID != "" {
		ctx = logger.WithSessionID(ctx, corr.SessionID)
	}
	return ctx, id
}

// CompleteInteraction moves an interaction to a terminal status. Unknown ids
// are a logged no-op.
func (h *Hub) CompleteInteraction(id string, status interaction.Status, opts interaction.CompleteOptions) bool {
	return h.Interactions.Complete(id, status, opts)
}

// FailInteraction is sugar for CompleteInteraction with an error status.
func (h *Hub) FailInteraction(id string, errDetail interaction.ErrorDetail) bool {
	return h.Interactions.Fail(id, errDetail)
}

// CancelInteraction records a caller-driven cancellation.
func (h *Hub) CancelInteraction(id string) bool {
	return h.Interactions.Cancel(id)
}

// LinkCall adds a call id to a pending interaction's linked-call set.
func (h *Hub) LinkCall(interactionID, callID string) bool {
	return h.Interactions.LinkCall(interactionID, callID)
}

// RecordPromptTransformation appends one prompt-rewrite step and links it to
// the interaction while the interaction is still pending.
func (h *Hub) RecordPromptTransformation(interactionID, originalInput, transformedPrompt string, typ transform.Type, rules []string, metadata map[string]string) string {
	id := h.Transforms.Record(interactionID, originalInput, transformedPrompt, typ, rules, metadata)
	h.Interactions.LinkTransformation(interactionID, id)
	return id
}

// TrackCallStart records a pending network call correlated to an interaction.
func (h *Hub) TrackCallStart(interactionID, provider, model, endpoint, method string, opts apicall.StartOptions) string {
	return h.Calls.StartCall(interactionID, provider, model, endpoint, method, opts)
}

// TrackCallStartContext correlates the call to the interaction stamped on ctx
// by StartInteractionContext.
func (h *Hub) TrackCallStartContext(ctx context.Context, provider, model, endpoint, method string, opts apicall.StartOptions) string {
	return h.Calls.StartCall(logger.GetInteractionID(ctx), provider, model, endpoint, method, opts)
}

// CompleteInteractionContext completes the interaction stamped on ctx.
func (h *Hub) CompleteInteractionContext(ctx context.Context, status interaction.Status, opts interaction.CompleteOptions) bool {
	return h.Interactions.Complete(logger.GetInteractionID(ctx), status, opts)
}

// TrackCallEnd finalizes a pending call with its result.
func (h *Hub) TrackCallEnd(callID string, res apicall.Result) bool {
	return h.Calls.EndCall(callID, res)
}

// TrackCallFailure is sugar for TrackCallEnd with a failed result.
func (h *Hub) TrackCallFailure(callID string, callErr apicall.CallError, statusCode int) bool {
	return h.Calls.FailCall(callID, callErr, statusCode)
}

// CheckTimeouts finalizes pending calls past their deadline and returns them.
func (h *Hub) CheckTimeouts() []*apicall.Call {
	return h.Calls.CheckTimeouts()
}

// InteractionStatistics returns counts by status plus the pending count.
func (h *Hub) InteractionStatistics() interaction.Stats {
	return h.Interactions.Statistics()
}

// CallStatistics returns call totals, grouped breakdowns, and the average
// duration over successful calls.
func (h *Hub) CallStatistics() apicall.Stats {
	return h.Calls.Statistics()
}

// ValidateCompleteness runs the quick audit. It always returns a report.
func (h *Hub) ValidateCompleteness() *audit.Report {
	return h.Auditor.Validate()
}

// PerformComprehensiveValidation runs the extended audit. On error, fall back
// to ValidateCompleteness for a partial report.
func (h *Hub) PerformComprehensiveValidation() (*audit.Report, error) {
	return h.Auditor.ValidateComprehensive()
}

// Cleanup purges finalized calls older than the retention window.
func (h *Hub) Cleanup() int {
	return h.Calls.Cleanup(time.Now())
}

// ClearAll resets every tracker. Test and debug use only.
func (h *Hub) ClearAll() {
	h.Interactions.Reset()
	h.Calls.Reset()
	h.Transforms.Clear()
}
