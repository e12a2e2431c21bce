package interaction

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/metsuke/internal/apicall"
)

// Destination receives terminal interaction records. Records completed before
// a destination is attached are buffered and flushed, in original order, once
// SetDestination is called.
type Destination interface {
	Append(rec *Interaction)
}

// Tracker manages the end-to-end lifecycle of logical AI operations. Every
// interaction moves pending -> exactly one terminal state, exactly once; a
// second completion attempt is a no-op. All methods are safe for concurrent
// use, and none of the mutating entry points can fail in a way that would
// abort the caller's primary AI path.
type Tracker struct {
	mu      sync.RWMutex
	pending map[string]*Interaction
	history []*Interaction
	buffer  []*Interaction
	dest    Destination
}

func NewTracker() *Tracker {
	return &Tracker{
		pending: make(map[string]*Interaction),
	}
}

// Start records a new pending interaction and returns its id. It always
// succeeds.
func (t *Tracker) Start(typ Type, provider, model string, input Input, corr Correlation) string {
	rec := &Interaction{
		ID:          ulid.Make().String(),
		Type:        typ,
		Status:      StatusPending,
		Provider:    provider,
		Model:       model,
		StartedAt:   time.Now(),
		Input:       input,
		Correlation: corr,
	}

	t.mu.Lock()
	t.pending[rec.ID] = rec
	t.mu.Unlock()

	slog.Debug("Interaction started",
		"interaction_id", rec.ID,
		"type", typ,
		"provider", provider,
		"model", model,
	)
	return rec.ID
}

// Complete moves a pending interaction to the given terminal status. Unknown
// ids (including ids already completed) are logged and ignored; the return
// value makes the no-op visible without ever raising an error on the caller's
// path.
func (t *Tracker) Complete(id string, status Status, opts CompleteOptions) bool {
	if !status.Terminal() {
		slog.Warn("Complete called with non-terminal status", "interaction_id", id, "status", status)
		return false
	}

	t.mu.Lock()
	rec, ok := t.pending[id]
	if !ok {
		t.mu.Unlock()
		slog.Warn("Complete for unknown interaction id", "interaction_id", id)
		return false
	}
	delete(t.pending, id)

	now := time.Now()
	rec.Status = status
	rec.EndedAt = now
	rec.DurationMS = now.Sub(rec.StartedAt).Milliseconds()
	rec.Output = opts.Output
	rec.Error = opts.Error
	rec.Cost = opts.Cost
	rec.Rating = opts.Rating

	t.history = append(t.history, rec)

	dest := t.dest
	if dest == nil {
		t.buffer = append(t.buffer, rec)
	}
	t.mu.Unlock()

	if dest != nil {
		dest.Append(rec)
	}

	slog.Debug("Interaction completed",
		"interaction_id", id,
		"status", status,
		"duration_ms", rec.DurationMS,
	)
	return true
}

// Fail is sugar for Complete with StatusError.
func (t *Tracker) Fail(id string, errDetail ErrorDetail) bool {
	return t.Complete(id, StatusError, CompleteOptions{Error: &errDetail})
}

// Cancel records a caller-driven cancellation. The tracker never originates
// cancellation itself.
func (t *Tracker) Cancel(id string) bool {
	return t.Complete(id, StatusCancelled, CompleteOptions{})
}

// LinkCall adds a call id to a pending interaction's linked-call set. Links
// after termination are refused: a late call stays orphaned by design.
func (t *Tracker) LinkCall(id, callID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.pending[id]
	if !ok {
		slog.Warn("LinkCall for unknown or terminal interaction", "interaction_id", id, "call_id", callID)
		return false
	}
	for _, existing := range rec.Meta.APICallIDs {
		if existing == callID {
			return true
		}
	}
	rec.Meta.APICallIDs = append(rec.Meta.APICallIDs, callID)
	return true
}

// LinkTransformation adds a prompt-transformation id to a pending
// interaction.
func (t *Tracker) LinkTransformation(id, transformationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.pending[id]
	if !ok {
		slog.Warn("LinkTransformation for unknown or terminal interaction",
			"interaction_id", id,
			"transformation_id", transformationID,
		)
		return false
	}
	rec.Meta.TransformationIDs = append(rec.Meta.TransformationIDs, transformationID)
	return true
}

// AttachCall implements apicall.Linker. The sanitized detail is kept for
// reporting while the interaction is still pending; details arriving after
// termination are dropped.
func (t *Tracker) AttachCall(interactionID string, detail apicall.CallDetail) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.pending[interactionID]
	if !ok {
		return false
	}
	rec.CallDetails = append(rec.CallDetails, detail)
	return true
}

// SetDestination attaches the destination and flushes buffered terminal
// records to it in their original completion order. The flush happens under
// the lock, before the destination is published, so a completion racing with
// attachment always lands after every buffered record. Destinations must not
// call back into the tracker from Append.
func (t *Tracker) SetDestination(dest Destination) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dest = dest
	if dest == nil {
		return
	}

	flushed := t.buffer
	t.buffer = nil
	for _, rec := range flushed {
		dest.Append(rec)
	}
	if len(flushed) > 0 {
		slog.Info("Flushed buffered interactions to destination", "count", len(flushed))
	}
}

// All returns copies of all terminal interactions ordered ascending by start
// timestamp.
func (t *Tracker) All() []*Interaction {
	t.mu.RLock()
	out := make([]*Interaction, 0, len(t.history))
	for _, rec := range t.history {
		c := *rec
		out = append(out, &c)
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// History returns copies of terminal interactions in completion order,
// without the start-time sort applied by All.
func (t *Tracker) History() []*Interaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Interaction, 0, len(t.history))
	for _, rec := range t.history {
		c := *rec
		out = append(out, &c)
	}
	return out
}

// Get returns a copy of the interaction with the given id, pending or
// terminal.
func (t *Tracker) Get(id string) (*Interaction, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if rec, ok := t.pending[id]; ok {
		c := *rec
		return &c, true
	}
	for _, rec := range t.history {
		if rec.ID == id {
			c := *rec
			return &c, true
		}
	}
	return nil, false
}

// PendingIDs returns the ids of interactions that have not reached a terminal
// state.
func (t *Tracker) PendingIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Statistics returns counts by status plus the pending count.
func (t *Tracker) Statistics() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		Total:    len(t.pending) + len(t.history),
		Pending:  len(t.pending),
		ByStatus: make(map[Status]int),
	}
	stats.ByStatus[StatusPending] = len(t.pending)
	for _, rec := range t.history {
		stats.ByStatus[rec.Status]++
	}
	return stats
}

// Reset drops all state, including any unflushed buffer. Test and debug use
// only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[string]*Interaction)
	t.history = nil
	t.buffer = nil
}
