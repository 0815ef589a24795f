// internal/logging/context.go
package logging

import (
	"context"

	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if diagram := DiagramFromContext(ctx); diagram != "" {
		fields = append(fields, zap.String("diagram.name", diagram))
	}

	return fields
}

// Context key types
type runCtxKey struct{}
type diagramCtxKey struct{}
type loggerCtxKey struct{}

// WithRunID adds a pipeline run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext extracts the pipeline run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(runCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithDiagram adds the diagram name to context.
func WithDiagram(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, diagramCtxKey{}, name)
}

// DiagramFromContext extracts the diagram name from context.
func DiagramFromContext(ctx context.Context) string {
	if d, ok := ctx.Value(diagramCtxKey{}).(string); ok {
		return d
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
