package apicall

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Tracker correlates network round-trips to logical interactions, detects
// calls that silently time out, and keeps finalized calls for a bounded
// retention window. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	pending   map[string]*Call
	finalized map[string]*Call

	linker          Linker
	defaultTimeout  time.Duration
	retentionWindow time.Duration
	maxBodyBytes    int
}

type TrackerOptions struct {
	DefaultTimeout  time.Duration
	RetentionWindow time.Duration
	MaxBodyBytes    int
}

func NewTracker(linker Linker, opts TrackerOptions) *Tracker {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultCallTimeout
	}
	if opts.RetentionWindow <= 0 {
		opts.RetentionWindow = DefaultRetentionWindow
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Tracker{
		pending:         make(map[string]*Call),
		finalized:       make(map[string]*Call),
		linker:          linker,
		defaultTimeout:  opts.DefaultTimeout,
		retentionWindow: opts.RetentionWindow,
		maxBodyBytes:    opts.MaxBodyBytes,
	}
}

// StartCall records a pending call and returns its id. It never fails.
func (t *Tracker) StartCall(interactionID, provider, model, endpoint, method string, opts StartOptions) string {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}

	call := &Call{
		CallID:        ulid.Make().String(),
		InteractionID: interactionID,
		Provider:      provider,
		Model:         model,
		Endpoint:      endpoint,
		Method:        method,
		StartedAt:     time.Now(),
		Timeout:       timeout,
		RetryCount:    opts.RetryCount,
		ContextInfo:   opts.ContextInfo,
		RequestBody:   sanitizeBody(opts.RequestBody, t.maxBodyBytes),
	}

	t.mu.Lock()
	t.pending[call.CallID] = call
	t.mu.Unlock()

	slog.Debug("API call started",
		"call_id", call.CallID,
		"interaction_id", interactionID,
		"provider", provider,
		"endpoint", endpoint,
	)
	return call.CallID
}

// EndCall finalizes a pending call with the given result. Unknown call ids are
// logged and ignored so tracking never becomes a failure mode for the caller.
func (t *Tracker) EndCall(callID string, res Result) bool {
	t.mu.Lock()
	call, ok := t.pending[callID]
	if !ok {
		t.mu.Unlock()
		slog.Warn("EndCall for unknown call id", "call_id", callID)
		return false
	}
	t.finalizeLocked(call, res, time.Now())
	detail, interactionID := callDetail(call)
	t.mu.Unlock()

	t.forward(interactionID, detail)
	return true
}

// FailCall is sugar for EndCall with a failed result.
func (t *Tracker) FailCall(callID string, callErr CallError, statusCode int) bool {
	return t.EndCall(callID, Result{
		Success:    false,
		StatusCode: statusCode,
		Err:        &callErr,
	})
}

// CheckTimeouts finalizes every pending call whose age exceeds its configured
// timeout and returns the affected calls. A call can time out at most once:
// finalization removes it from the pending set.
func (t *Tracker) CheckTimeouts() []*Call {
	now := time.Now()

	type forwarded struct {
		interactionID string
		detail        CallDetail
	}

	var timedOut []*Call
	var forwards []forwarded

	t.mu.Lock()
	for _, call := range t.pending {
		if now.Sub(call.StartedAt) <= call.Timeout {
			continue
		}
		t.finalizeLocked(call, Result{
			Success: false,
			Err: &CallError{
				Code:    CodeTimeout,
				Message: "call exceeded configured timeout of " + call.Timeout.String(),
			},
		}, now)
		c := *call
		timedOut = append(timedOut, &c)

		detail, interactionID := callDetail(call)
		forwards = append(forwards, forwarded{interactionID, detail})
	}
	t.mu.Unlock()

	for _, f := range forwards {
		t.forward(f.interactionID, f.detail)
	}

	if len(timedOut) > 0 {
		slog.Warn("Pending API calls timed out", "count", len(timedOut))
	}
	return timedOut
}

// Cleanup purges finalized calls strictly older than the retention window and
// returns the number removed. Pending calls are never purged.
func (t *Tracker) Cleanup(now time.Time) int {
	cutoff := now.Add(-t.retentionWindow)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, call := range t.finalized {
		if call.EndedAt.Before(cutoff) {
			delete(t.finalized, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Purged finalized API calls", "count", removed)
	}
	return removed
}

// Statistics computes counts and grouped breakdowns over all tracked calls.
// Average duration covers successfully completed calls only.
func (t *Tracker) Statistics() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		Pending:     len(t.pending),
		ByProvider:  make(map[string]int),
		ByEndpoint:  make(map[string]int),
		ByErrorCode: make(map[string]int),
	}

	var successDurationTotal int64
	for _, call := range t.pending {
		stats.ByProvider[call.Provider]++
		stats.ByEndpoint[call.Endpoint]++
	}
	for _, call := range t.finalized {
		stats.ByProvider[call.Provider]++
		stats.ByEndpoint[call.Endpoint]++
		if call.Success {
			stats.Successful++
			successDurationTotal += call.DurationMS
		} else {
			stats.Failed++
			if call.Error != nil && call.Error.Code != "" {
				stats.ByErrorCode[call.Error.Code]++
			}
		}
	}

	stats.Total = len(t.pending) + len(t.finalized)
	if stats.Successful > 0 {
		stats.AverageDurationMS = float64(successDurationTotal) / float64(stats.Successful)
	}
	return stats
}

// Snapshot returns copies of all tracked calls, pending and finalized.
func (t *Tracker) Snapshot() []*Call {
	t.mu.RLock()
	defer t.mu.RUnlock()

	calls := make([]*Call, 0, len(t.pending)+len(t.finalized))
	for _, call := range t.pending {
		c := *call
		calls = append(calls, &c)
	}
	for _, call := range t.finalized {
		c := *call
		calls = append(calls, &c)
	}
	return calls
}

// Get returns a copy of the call with the given id, if tracked.
func (t *Tracker) Get(callID string) (*Call, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if call, ok := t.pending[callID]; ok {
		c := *call
		return &c, true
	}
	if call, ok := t.finalized[callID]; ok {
		c := *call
		return &c, true
	}
	return nil, false
}

// Reset drops all tracked calls. Test and debug use only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[string]*Call)
	t.finalized = make(map[string]*Call)
}

// finalizeLocked moves a call from pending to finalized. Callers must hold the
// write lock.
func (t *Tracker) finalizeLocked(call *Call, res Result, now time.Time) {
	call.EndedAt = now
	call.DurationMS = now.Sub(call.StartedAt).Milliseconds()
	call.Success = res.Success
	call.StatusCode = res.StatusCode
	call.ResponseBody = sanitizeBody(res.Body, t.maxBodyBytes)
	call.Error = res.Err

	delete(t.pending, call.CallID)
	t.finalized[call.CallID] = call
}

func (t *Tracker) forward(interactionID string, detail CallDetail) {
	if t.linker == nil || interactionID == "" {
		return
	}
	if !t.linker.AttachCall(interactionID, detail) {
		slog.Debug("Call detail not attached, interaction already terminal or unknown",
			"call_id", detail.CallID,
			"interaction_id", interactionID,
		)
	}
}

func callDetail(call *Call) (CallDetail, string) {
	detail := CallDetail{
		CallID:     call.CallID,
		Provider:   call.Provider,
		Model:      call.Model,
		Endpoint:   call.Endpoint,
		Method:     call.Method,
		StatusCode: call.StatusCode,
		Success:    call.Success,
		DurationMS: call.DurationMS,
	}
	if call.Error != nil {
		detail.ErrorCode = call.Error.Code
	}
	return detail, call.InteractionID
}
