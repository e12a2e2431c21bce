package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harunnryd/metsuke/internal/interaction"
)

const tracerName = "github.com/harunnryd/metsuke"

// SpanMirror implements interaction.Destination by emitting one span per
// terminal interaction, backdated to the interaction's own start and end
// times.
type SpanMirror struct {
	next interaction.Destination
}

// NewSpanMirror wraps an optional downstream destination; records are passed
// through after the span is emitted.
func NewSpanMirror(next interaction.Destination) *SpanMirror {
	return &SpanMirror{next: next}
}

func (m *SpanMirror) Append(rec *interaction.Interaction) {
	tracer := otel.Tracer(tracerName)

	attrs := []attribute.KeyValue{
		attribute.String("interaction.id", rec.ID),
		attribute.String("interaction.type", string(rec.Type)),
		attribute.String("interaction.status", string(rec.Status)),
		attribute.String("interaction.provider", rec.Provider),
		attribute.Int("interaction.linked_calls", len(rec.Meta.APICallIDs)),
	}
	if rec.Model != "" {
		attrs = append(attrs, attribute.String("interaction.model", rec.Model))
	}
	if rec.Cost != nil {
		attrs = append(attrs,
			attribute.Int("interaction.input_tokens", rec.Cost.InputTokens),
			attribute.Int("interaction.output_tokens", rec.Cost.OutputTokens),
		)
	}

	_, span := tracer.Start(context.Background(), string(rec.Type),
		trace.WithTimestamp(rec.StartedAt),
		trace.WithAttributes(attrs...),
	)
	if rec.Status == interaction.StatusError {
		msg := ""
		if rec.Error != nil {
			msg = rec.Error.Message
		}
		span.SetStatus(codes.Error, msg)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(rec.EndedAt))

	if m.next != nil {
		m.next.Append(rec)
	}
}
