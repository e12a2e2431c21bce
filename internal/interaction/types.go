package interaction

import (
	"time"

	"github.com/harunnryd/metsuke/internal/apicall"
)

type Type string

const (
	TypeTextGeneration  Type = "text_generation"
	TypeImageGeneration Type = "image_generation"
	TypeVideoGeneration Type = "video_generation"
	TypeSlideLayout     Type = "slide_layout"
	TypeNotesGeneration Type = "notes_generation"
	TypeTranslation     Type = "translation"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

type Attachment struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type Input struct {
	Prompt      string       `json:"prompt"`
	Context     string       `json:"context,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Output struct {
	Content      string       `json:"content,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Cost struct {
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	Images       int     `json:"images,omitempty"`
	EstimatedUSD float64 `json:"estimated_usd,omitempty"`
}

// Correlation ties an interaction to the document position and session that
// produced it.
type Correlation struct {
	SessionID string `json:"session_id,omitempty"`
	SlideID   string `json:"slide_id,omitempty"`
	LayerID   string `json:"layer_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
}

// Meta is the schema-checked replacement for a free-form metadata bag. Linked
// call and transformation ids are first-class; anything else goes in Extra.
type Meta struct {
	APICallIDs        []string          `json:"api_call_ids,omitempty"`
	TransformationIDs []string          `json:"transformation_ids,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Interaction is one logical, caller-visible AI operation with a single
// lifecycle outcome.
type Interaction struct {
	ID          string       `json:"id"`
	Type        Type         `json:"type"`
	Status      Status       `json:"status"`
	Provider    string       `json:"provider"`
	Model       string       `json:"model,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     time.Time    `json:"ended_at,omitzero"`
	DurationMS  int64        `json:"duration_ms"`
	Input       Input        `json:"input"`
	Output      *Output      `json:"output,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	Cost        *Cost        `json:"cost,omitempty"`
	Rating      int          `json:"rating,omitempty"`
	Correlation Correlation  `json:"correlation,omitzero"`
	Meta        Meta         `json:"meta,omitzero"`

	// Sanitized details forwarded by the call tracker while this interaction
	// was still pending.
	CallDetails []apicall.CallDetail `json:"call_details,omitempty"`
}

type CompleteOptions struct {
	Output *Output
	Error  *ErrorDetail
	Cost   *Cost
	Rating int
}

type Stats struct {
	Total    int            `json:"total"`
	Pending  int            `json:"pending"`
	ByStatus map[Status]int `json:"by_status"`
}
