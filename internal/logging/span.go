package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span represents one service operation within a request trace.
type Span struct {
	name    string
	logger  *slog.Logger
	start   time.Time
	outcome string
}

// StartSpan derives a child span from ctx. The first span in a request also
// starts the trace, reusing the request id when one is present.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	if TraceIDFromContext(ctx) == "" {
		traceID := RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = withString(ctx, traceIDKey, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// SetOutcome labels the span; the label is emitted when the span ends.
func (s *Span) SetOutcome(outcome string) {
	if s != nil {
		s.outcome = outcome
	}
}

// End emits a completion entry. Failed spans log at warn level.
func (s *Span) End() {
	if s == nil {
		return
	}
	level := slog.LevelInfo
	if s.outcome == "error" {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.Duration("duration", time.Since(s.start))}
	if s.outcome != "" {
		attrs = append(attrs, slog.String("outcome", s.outcome))
	}
	s.logger.LogAttrs(context.Background(), level, "span completed", attrs...)
}
