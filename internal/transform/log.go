// Package transform keeps an append-only log of prompt-rewrite steps, keyed
// by interaction id. An interaction may accumulate several entries, one per
// stage of a rewrite pipeline.
package transform

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Type string

const (
	TypeEnhancement          Type = "enhancement"
	TypeStyleInjection       Type = "style_injection"
	TypeContextAddition      Type = "context_addition"
	TypeSystemPromptAddition Type = "system_prompt_addition"
)

type Entry struct {
	ID                string            `json:"id"`
	InteractionID     string            `json:"interaction_id"`
	OriginalInput     string            `json:"original_input"`
	TransformedPrompt string            `json:"transformed_prompt"`
	Type              Type              `json:"type"`
	Rules             []string          `json:"rules,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type Log struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewLog() *Log {
	return &Log{}
}

// Record appends one transformation step and returns its id.
func (l *Log) Record(interactionID, originalInput, transformedPrompt string, typ Type, rules []string, metadata map[string]string) string {
	entry := &Entry{
		ID:                ulid.Make().String(),
		InteractionID:     interactionID,
		OriginalInput:     originalInput,
		TransformedPrompt: transformedPrompt,
		Type:              typ,
		Rules:             rules,
		Timestamp:         time.Now(),
		Metadata:          metadata,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return entry.ID
}

// Get returns entries for one interaction in insertion order.
func (l *Log) Get(interactionID string) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Entry
	for _, e := range l.entries {
		if e.InteractionID == interactionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// All returns every entry in insertion order.
func (l *Log) All() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		c := *e
		out = append(out, &c)
	}
	return out
}

// Clear resets the log. Test and debug use only.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
