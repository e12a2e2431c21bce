package audit

import (
	"time"

	"github.com/harunnryd/metsuke/internal/apicall"
)

// Gap marks an unusually long quiet period between two consecutive
// interactions. Duration is the formatted form ("19h0m0s"), since the report
// is printed for humans.
type Gap struct {
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	Duration string `json:"duration"`
}

// TransformCoverage summarizes which terminal interactions carry prompt
// transformation entries.
type TransformCoverage struct {
	WithTransformations    int `json:"with_transformations"`
	WithoutTransformations int `json:"without_transformations"`
}

// Report is a point-in-time completeness audit over the tracked data set.
// Quick and comprehensive validation share this shape; comprehensive
// validation fills the optional fields.
type Report struct {
	GeneratedAt          time.Time `json:"generated_at"`
	TotalAPICalls        int       `json:"total_api_calls"`
	RecordedInteractions int       `json:"recorded_interactions"`
	MissingInteractions  []string  `json:"missing_interactions"`
	OrphanedAPICalls     []string  `json:"orphaned_api_calls"`
	IntegrityScore       float64   `json:"integrity_score"`
	Recommendations      []string  `json:"recommendations"`

	// Comprehensive-only findings.
	IncompleteInteractions []string           `json:"incomplete_interactions,omitempty"`
	DuplicateIDs           []string           `json:"duplicate_ids,omitempty"`
	OutOfOrderTimestamps   int                `json:"out_of_order_timestamps,omitempty"`
	TemporalGaps           []Gap              `json:"temporal_gaps,omitempty"`
	CallStatistics         *apicall.Stats     `json:"call_statistics,omitempty"`
	TransformCoverage      *TransformCoverage `json:"transform_coverage,omitempty"`
}
