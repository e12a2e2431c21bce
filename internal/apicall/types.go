package apicall

import "time"

// CodeTimeout is the synthesized error code assigned by the timeout sweep.
const CodeTimeout = "TIMEOUT"

// DefaultCallTimeout applies when a call is started without an explicit timeout.
const DefaultCallTimeout = 60 * time.Second

// DefaultRetentionWindow bounds how long finalized calls are kept before cleanup.
const DefaultRetentionWindow = 2 * time.Hour

type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Call is one concrete network round-trip to a provider endpoint. The
// interaction id is a weak reference used for correlation only.
type Call struct {
	CallID        string            `json:"call_id"`
	InteractionID string            `json:"interaction_id,omitempty"`
	Provider      string            `json:"provider"`
	Model         string            `json:"model,omitempty"`
	Endpoint      string            `json:"endpoint"`
	Method        string            `json:"method"`
	StartedAt     time.Time         `json:"started_at"`
	Timeout       time.Duration     `json:"timeout"`
	RetryCount    int               `json:"retry_count,omitempty"`
	ContextInfo   map[string]string `json:"context_info,omitempty"`
	RequestBody   string            `json:"request_body,omitempty"`

	// Finalization fields, set exactly once.
	EndedAt      time.Time  `json:"ended_at,omitzero"`
	DurationMS   int64      `json:"duration_ms"`
	Success      bool       `json:"success"`
	StatusCode   int        `json:"status_code,omitempty"`
	ResponseBody string     `json:"response_body,omitempty"`
	Error        *CallError `json:"error,omitempty"`
}

// Finalized reports whether the call has been ended, failed, or timed out.
func (c *Call) Finalized() bool {
	return !c.EndedAt.IsZero()
}

type StartOptions struct {
	Timeout     time.Duration
	RetryCount  int
	ContextInfo map[string]string
	RequestBody string
}

type Result struct {
	Success    bool
	StatusCode int
	Headers    map[string]string
	Body       string
	Err        *CallError
}

// CallDetail is the sanitized summary forwarded to the interaction side when a
// call finalizes.
type CallDetail struct {
	CallID     string `json:"call_id"`
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	Endpoint   string `json:"endpoint"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code,omitempty"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// Linker receives finalized call details keyed by interaction id. Implemented
// by the interaction tracker.
type Linker interface {
	AttachCall(interactionID string, detail CallDetail) bool
}

type Stats struct {
	Total             int            `json:"total"`
	Successful        int            `json:"successful"`
	Failed            int            `json:"failed"`
	Pending           int            `json:"pending"`
	AverageDurationMS float64        `json:"average_duration_ms"`
	ByProvider        map[string]int `json:"by_provider"`
	ByEndpoint        map[string]int `json:"by_endpoint"`
	ByErrorCode       map[string]int `json:"by_error_code"`
}
