package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/metsuke/internal/apicall"
	"github.com/harunnryd/metsuke/internal/interaction"
	"github.com/harunnryd/metsuke/internal/transform"
)

// fakeInteractionSource lets tests feed the validator records a live tracker
// could never produce (duplicates, missing fields).
type fakeInteractionSource struct {
	history []*interaction.Interaction
	pending []string
}

func (f *fakeInteractionSource) History() []*interaction.Interaction { return f.history }
func (f *fakeInteractionSource) PendingIDs() []string                { return f.pending }

func newFixture() (*interaction.Tracker, *apicall.Tracker, *transform.Log, *Validator) {
	interactions := interaction.NewTracker()
	calls := apicall.NewTracker(interactions, apicall.TrackerOptions{})
	transforms := transform.NewLog()
	v := NewValidator(interactions, calls, transforms, DefaultOptions())
	return interactions, calls, transforms, v
}

func TestValidator_CleanDataSetScoresHundred(t *testing.T) {
	interactions, calls, _, v := newFixture()

	for i := 0; i < 3; i++ {
		id := interactions.Start(interaction.TypeTextGeneration, "openai", "gpt-4", interaction.Input{}, interaction.Correlation{})
		callID := calls.StartCall(id, "openai", "gpt-4", "/v1/chat", "POST", apicall.StartOptions{})
		interactions.LinkCall(id, callID)
		calls.EndCall(callID, apicall.Result{Success: true, StatusCode: 200})
		interactions.Complete(id, interaction.StatusSuccess, interaction.CompleteOptions{})
	}

	report := v.Validate()
	assert.Empty(t, report.OrphanedAPICalls)
	assert.Empty(t, report.MissingInteractions)
	assert.Equal(t, 100.0, report.IntegrityScore)
	assert.Empty(t, report.Recommendations)
	assert.Equal(t, 3, report.RecordedInteractions)
	assert.Equal(t, 3, report.TotalAPICalls)
}

func TestValidator_OrphanedCallPenalty(t *testing.T) {
	interactions, calls, _, v := newFixture()

	id := interactions.Start(interaction.TypeSlideLayout, "openai", "gpt-4", interaction.Input{}, interaction.Correlation{})

	var callIDs []string
	for i := 0; i < 3; i++ {
		callIDs = append(callIDs, calls.StartCall(id, "openai", "gpt-4", "/v1/chat", "POST", apicall.StartOptions{}))
	}

	// Link only two of the three calls; the third stays orphaned by design.
	interactions.LinkCall(id, callIDs[0])
	interactions.LinkCall(id, callIDs[1])

	for _, callID := range callIDs {
		calls.EndCall(callID, apicall.Result{Success: true, StatusCode: 200})
	}
	interactions.Complete(id, interaction.StatusSuccess, interaction.CompleteOptions{})

	report := v.Validate()
	require.Len(t, report.OrphanedAPICalls, 1)
	assert.Equal(t, callIDs[2], report.OrphanedAPICalls[0])
	assert.Equal(t, 95.0, report.IntegrityScore)
	assert.NotEmpty(t, report.Recommendations)
}

func TestValidator_PendingInteractionsAreMissing(t *testing.T) {
	interactions, _, _, v := newFixture()

	done := interactions.Start(interaction.TypeTextGeneration, "openai", "gpt-4", interaction.Input{}, interaction.Correlation{})
	interactions.Complete(done, interaction.StatusSuccess, interaction.CompleteOptions{})

	stuck := interactions.Start(interaction.TypeImageGeneration, "openai", "dall-e-3", interaction.Input{}, interaction.Correlation{})

	report := v.Validate()
	require.Len(t, report.MissingInteractions, 1)
	assert.Equal(t, stuck, report.MissingInteractions[0])
	assert.Equal(t, 50.0, report.IntegrityScore)
}

func TestValidator_ScoreMonotonicInOrphansAndClamped(t *testing.T) {
	v := NewValidator(nil, nil, nil, DefaultOptions())

	prev := 101.0
	for orphans := 0; orphans <= 25; orphans++ {
		score := v.score(10, 0, orphans)
		assert.LessOrEqual(t, score, prev, "score must be non-increasing in orphan count")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
		prev = score
	}
	assert.Equal(t, 0.0, v.score(10, 0, 25))

	// Deterministic: identical inputs yield identical scores.
	assert.Equal(t, v.score(7, 3, 2), v.score(7, 3, 2))
}

func TestValidator_EmptyDataSet(t *testing.T) {
	_, _, _, v := newFixture()

	report := v.Validate()
	assert.Equal(t, 100.0, report.IntegrityScore)
	assert.Zero(t, report.TotalAPICalls)
	assert.Zero(t, report.RecordedInteractions)
}

func TestValidator_ComprehensiveFindings(t *testing.T) {
	interactions, calls, transforms, v := newFixture()

	id := interactions.Start(interaction.TypeTextGeneration, "openai", "gpt-4", interaction.Input{Prompt: "p"}, interaction.Correlation{})
	transforms.Record(id, "p", "p enhanced", transform.TypeEnhancement, nil, nil)
	callID := calls.StartCall(id, "openai", "gpt-4", "/v1/chat", "POST", apicall.StartOptions{})
	interactions.LinkCall(id, callID)
	calls.EndCall(callID, apicall.Result{Success: true, StatusCode: 200})
	interactions.Complete(id, interaction.StatusSuccess, interaction.CompleteOptions{})

	bare := interactions.Start(interaction.TypeNotesGeneration, "openai", "gpt-4", interaction.Input{}, interaction.Correlation{})
	interactions.Complete(bare, interaction.StatusSuccess, interaction.CompleteOptions{})

	report, err := v.ValidateComprehensive()
	require.NoError(t, err)
	require.NotNil(t, report.CallStatistics)
	assert.Equal(t, 1, report.CallStatistics.Successful)
	require.NotNil(t, report.TransformCoverage)
	assert.Equal(t, 1, report.TransformCoverage.WithTransformations)
	assert.Equal(t, 1, report.TransformCoverage.WithoutTransformations)
	assert.Empty(t, report.DuplicateIDs)
	assert.Empty(t, report.IncompleteInteractions)
}

func TestValidator_ComprehensiveDetectsDuplicatesAndGaps(t *testing.T) {
	now := time.Now()
	src := &fakeInteractionSource{
		history: []*interaction.Interaction{
			{ID: "dup", Type: interaction.TypeTextGeneration, Status: interaction.StatusSuccess, Provider: "openai", Model: "gpt-4", StartedAt: now.Add(-20 * time.Hour)},
			{ID: "dup", Type: interaction.TypeTextGeneration, Status: interaction.StatusSuccess, Provider: "openai", Model: "gpt-4", StartedAt: now.Add(-19 * time.Hour)},
			{ID: "late", Type: interaction.TypeTextGeneration, Status: interaction.StatusSuccess, Provider: "openai", Model: "gpt-4", StartedAt: now},
			// Backfilled record: start time earlier than its predecessor's.
			{ID: "backfill", Type: interaction.TypeTextGeneration, Status: interaction.StatusSuccess, Provider: "openai", StartedAt: now.Add(-21 * time.Hour)},
		},
	}
	calls := apicall.NewTracker(nil, apicall.TrackerOptions{})
	v := NewValidator(src, calls, nil, DefaultOptions())

	report, err := v.ValidateComprehensive()
	require.NoError(t, err)
	assert.Equal(t, []string{"dup"}, report.DuplicateIDs)
	// "backfill" has no model set.
	assert.Equal(t, []string{"backfill"}, report.IncompleteInteractions)
	assert.Equal(t, 1, report.OutOfOrderTimestamps)
	// Gap between -19h and now exceeds the 6h threshold.
	require.NotEmpty(t, report.TemporalGaps)
	assert.Equal(t, "late", report.TemporalGaps[0].ToID)
	// The gap is reported in formatted form, not raw nanoseconds.
	gapDuration, perr := time.ParseDuration(report.TemporalGaps[0].Duration)
	require.NoError(t, perr)
	assert.Greater(t, gapDuration, 6*time.Hour)
}

func TestValidator_ComprehensiveFailsOnMalformedState(t *testing.T) {
	src := &fakeInteractionSource{
		history: []*interaction.Interaction{
			{ID: "", Status: interaction.StatusSuccess, Provider: "openai"},
		},
	}
	calls := apicall.NewTracker(nil, apicall.TrackerOptions{})
	v := NewValidator(src, calls, nil, DefaultOptions())

	_, err := v.ValidateComprehensive()
	require.Error(t, err)

	// The quick path stays available as a fallback.
	report := v.Validate()
	require.NotNil(t, report)
}

func TestValidator_GapFindingsCapped(t *testing.T) {
	now := time.Now()
	src := &fakeInteractionSource{}
	for i := 0; i < 10; i++ {
		src.history = append(src.history, &interaction.Interaction{
			ID:        string(rune('a' + i)),
			Type:      interaction.TypeTextGeneration,
			Status:    interaction.StatusSuccess,
			Provider:  "openai",
			Model:     "gpt-4",
			StartedAt: now.Add(time.Duration(i) * 8 * time.Hour),
		})
	}
	calls := apicall.NewTracker(nil, apicall.TrackerOptions{})
	v := NewValidator(src, calls, nil, DefaultOptions())

	report, err := v.ValidateComprehensive()
	require.NoError(t, err)
	assert.Len(t, report.TemporalGaps, 5)
}
