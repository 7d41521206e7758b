package nodedist

import "context"

// Logger provides structured logging for fetch operations. The context
// carries the caller's span so handlers can correlate the records.
// *slog.Logger satisfies this interface.
type Logger interface {
	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)
}

// noopLogger is the default logger used when none is provided.
type noopLogger struct{}

func (noopLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {}
func (noopLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any)  {}
func (noopLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any)  {}
func (noopLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {}
