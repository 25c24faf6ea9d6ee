package tracing

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	runIDKey
	providerKey
)

// TraceContext is the set of identifiers a run carries through its context.
type TraceContext struct {
	TraceID  string
	RunID    string
	Provider string
}

// NewTraceID returns a random trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID returns a random run ID.
func NewRunID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithProvider records which model provider serves the run.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

func lookup(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func GetTraceID(ctx context.Context) string {
	return lookup(ctx, traceIDKey)
}

func GetRunID(ctx context.Context) string {
	return lookup(ctx, runIDKey)
}

func GetProvider(ctx context.Context) string {
	return lookup(ctx, providerKey)
}

// FromContext snapshots every identifier in ctx. Missing ones are empty.
func FromContext(ctx context.Context) TraceContext {
	return TraceContext{
		TraceID:  GetTraceID(ctx),
		RunID:    GetRunID(ctx),
		Provider: GetProvider(ctx),
	}
}

// NewContext stores the non-empty identifiers of tc on ctx.
func NewContext(ctx context.Context, tc TraceContext) context.Context {
	for _, kv := range []struct {
		key ctxKey
		val string
	}{
		{traceIDKey, tc.TraceID},
		{runIDKey, tc.RunID},
		{providerKey, tc.Provider},
	} {
		if kv.val != "" {
			ctx = context.WithValue(ctx, kv.key, kv.val)
		}
	}
	return ctx
}

// NewAgentRunContext starts a run: a fresh run ID, plus a trace ID when the
// caller has none yet.
func NewAgentRunContext(ctx context.Context, provider string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithRunID(ctx, NewRunID())
	return WithProvider(ctx, provider)
}

// CloneContext carries the identifiers onto a fresh background context, so
// work that must outlive a cancelled run (like saving memory) keeps its IDs.
func CloneContext(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
