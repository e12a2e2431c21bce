package logger

import "context"

type contextKey string

const SessionIDKey contextKey = "session_id"
const InteractionIDKey contextKey = "interaction_id"

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

func WithInteractionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, InteractionIDKey, id)
}

func GetInteractionID(ctx context.Context) string {
	if id, ok := ctx.Value(InteractionIDKey).(string); ok {
		return id
	}
	return ""
}
