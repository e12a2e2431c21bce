// Package audit cross-references the interaction tracker and the API call
// tracker to produce an integrity report. It is strictly read-only: it never
// mutates the components it observes.
package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/harunnryd/metsuke/internal/apicall"
	"github.com/harunnryd/metsuke/internal/errors"
	"github.com/harunnryd/metsuke/internal/interaction"
	"github.com/harunnryd/metsuke/internal/transform"
)

type InteractionSource interface {
	History() []*interaction.Interaction
	PendingIDs() []string
}

type CallSource interface {
	Snapshot() []*apicall.Call
	Statistics() apicall.Stats
}

type TransformSource interface {
	All() []*transform.Entry
}

// Options hold the scoring heuristics. The constants mirror the observed
// behavior of the system this audits; they are tunable, not semantically
// meaningful.
type Options struct {
	OrphanPenalty  float64
	ScoreThreshold float64
	GapThreshold   time.Duration
	MaxGapFindings int
}

func DefaultOptions() Options {
	return Options{
		OrphanPenalty:  5,
		ScoreThreshold: 95,
		GapThreshold:   6 * time.Hour,
		MaxGapFindings: 5,
	}
}

type Validator struct {
	interactions InteractionSource
	calls        CallSource
	transforms   TransformSource
	opts         Options
}

func NewValidator(interactions InteractionSource, calls CallSource, transforms TransformSource, opts Options) *Validator {
	if opts.OrphanPenalty <= 0 {
		opts.OrphanPenalty = DefaultOptions().OrphanPenalty
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = DefaultOptions().ScoreThreshold
	}
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultOptions().GapThreshold
	}
	if opts.MaxGapFindings <= 0 {
		opts.MaxGapFindings = DefaultOptions().MaxGapFindings
	}

	return &Validator{
		interactions: interactions,
		calls:        calls,
		transforms:   transforms,
		opts:         opts,
	}
}

// Validate runs the quick completeness audit. It never fails; a report is
// always available.
func (v *Validator) Validate() *Report {
	terminal := v.interactions.History()
	pending := v.interactions.PendingIDs()
	calls := v.calls.Snapshot()

	linked := make(map[string]struct{})
	for _, rec := range terminal {
		for _, callID := range rec.Meta.APICallIDs {
			linked[callID] = struct{}{}
		}
	}

	var orphaned []string
	for _, call := range calls {
		if _, ok := linked[call.CallID]; !ok {
			orphaned = append(orphaned, call.CallID)
		}
	}
	sort.Strings(orphaned)

	report := &Report{
		GeneratedAt:          time.Now(),
		TotalAPICalls:        len(calls),
		RecordedInteractions: len(terminal),
		MissingInteractions:  pending,
		OrphanedAPICalls:     orphaned,
		IntegrityScore:       v.score(len(terminal), len(pending), len(orphaned)),
	}
	report.Recommendations = v.recommend(report)
	return report
}

// ValidateComprehensive runs the quick audit plus the deeper structural
// analysis. It fails only on truly malformed internal state; callers should
// fall back to Validate for a partial report.
func (v *Validator) ValidateComprehensive() (*Report, error) {
	report := v.Validate()
	terminal := v.interactions.History()

	seen := make(map[string]int)
	for _, rec := range terminal {
		if rec.ID == "" || rec.StartedAt.IsZero() {
			return nil, errors.MalformedState(
				fmt.Sprintf("terminal interaction with empty id or zero start time (type=%s provider=%s)", rec.Type, rec.Provider),
			)
		}
		seen[rec.ID]++
	}

	for id, count := range seen {
		if count > 1 {
			report.DuplicateIDs = append(report.DuplicateIDs, id)
		}
	}
	sort.Strings(report.DuplicateIDs)

	for _, rec := range terminal {
		if !complete(rec) {
			report.IncompleteInteractions = append(report.IncompleteInteractions, rec.ID)
		}
	}
	sort.Strings(report.IncompleteInteractions)

	// Out-of-order start timestamps in completion order are a soft signal:
	// backfills are legitimate, so this is counted, not penalized.
	for i := 1; i < len(terminal); i++ {
		if terminal[i].StartedAt.Before(terminal[i-1].StartedAt) {
			report.OutOfOrderTimestamps++
		}
	}

	report.TemporalGaps = v.findGaps(terminal)

	stats := v.calls.Statistics()
	report.CallStatistics = &stats

	if v.transforms != nil {
		report.TransformCoverage = v.coverage(terminal)
	}

	if len(report.DuplicateIDs) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d duplicate interaction ids detected; id generation or replay may be broken", len(report.DuplicateIDs)))
	}
	if len(report.IncompleteInteractions) > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d interactions are missing required fields (id, timestamp, type, provider, model)", len(report.IncompleteInteractions)))
	}
	return report, nil
}

func (v *Validator) score(terminalCount, pendingCount, orphanCount int) float64 {
	ratio := 100.0
	if terminalCount+pendingCount > 0 {
		ratio = float64(terminalCount) / float64(terminalCount+pendingCount) * 100
	}

	score := ratio - v.opts.OrphanPenalty*float64(orphanCount)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (v *Validator) recommend(report *Report) []string {
	var recs []string
	if report.IntegrityScore < v.opts.ScoreThreshold {
		recs = append(recs, fmt.Sprintf("integrity score %.1f is below threshold %.1f", report.IntegrityScore, v.opts.ScoreThreshold))
	}
	if len(report.MissingInteractions) > 0 {
		recs = append(recs, fmt.Sprintf("%d interactions are still pending; callers may have skipped completion", len(report.MissingInteractions)))
	}
	if len(report.OrphanedAPICalls) > 0 {
		recs = append(recs, fmt.Sprintf("%d API calls are not linked to any interaction", len(report.OrphanedAPICalls)))
	}
	return recs
}

func (v *Validator) findGaps(terminal []*interaction.Interaction) []Gap {
	if len(terminal) < 2 {
		return nil
	}

	ordered := make([]*interaction.Interaction, len(terminal))
	copy(ordered, terminal)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	var gaps []Gap
	for i := 1; i < len(ordered); i++ {
		gap := ordered[i].StartedAt.Sub(ordered[i-1].StartedAt)
		if gap > v.opts.GapThreshold {
			gaps = append(gaps, Gap{
				FromID:   ordered[i-1].ID,
				ToID:     ordered[i].ID,
				Duration: gap.String(),
			})
			if len(gaps) >= v.opts.MaxGapFindings {
				break
			}
		}
	}
	return gaps
}

func (v *Validator) coverage(terminal []*interaction.Interaction) *TransformCoverage {
	byInteraction := make(map[string]struct{})
	for _, entry := range v.transforms.All() {
		byInteraction[entry.InteractionID] = struct{}{}
	}

	cov := &TransformCoverage{}
	for _, rec := range terminal {
		if _, ok := byInteraction[rec.ID]; ok {
			cov.WithTransformations++
		} else {
			cov.WithoutTransformations++
		}
	}
	return cov
}

func complete(rec *interaction.Interaction) bool {
	return rec.ID != "" && !rec.StartedAt.IsZero() && rec.Type != "" && rec.Provider != "" && rec.Model != ""
}
