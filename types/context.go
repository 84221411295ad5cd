package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID        contextKey = "trace_id"
	keyUserID         contextKey = "user_id"
	keyConversationID contextKey = "conversation_id"
	keyAgentName      contextKey = "agent_name"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithUserID adds user ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID extracts user ID from context.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)
	return v, ok && v != ""
}

// WithConversationID adds conversation ID to context.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, keyConversationID, conversationID)
}

// ConversationID extracts conversation ID from context.
func ConversationID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyConversationID).(string)
	return v, ok && v != ""
}

// WithAgentName adds the speaking agent's name to context.
func WithAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyAgentName, name)
}

// AgentName extracts the speaking agent's name from context.
func AgentName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyAgentName).(string)
	return v, ok && v != ""
}
