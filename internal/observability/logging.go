package observability

import (
	"context"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	BuildID string
	Page    string
	Version string
	Phase   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithBuildID adds a build ID to the context.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	lc := extractLogContext(ctx)
	lc.BuildID = buildID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPage adds the page name and version to the context.
func WithPage(ctx context.Context, page, version string) context.Context {
	lc := extractLogContext(ctx)
	lc.Page = page
	lc.Version = version
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPhase adds a build phase name to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	lc := extractLogContext(ctx)
	lc.Phase = phase
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

// Attrs returns slog attributes for the non-empty fields of the context's LogContext.
func Attrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := make([]slog.Attr, 0, 4)

	if lc.BuildID != "" {
		attrs = append(attrs, logfields.BuildID(lc.BuildID))
	}
	if lc.Page != "" {
		attrs = append(attrs, logfields.Page(lc.Page))
	}
	if lc.Version != "" {
		attrs = append(attrs, logfields.Version(lc.Version))
	}
	if lc.Phase != "" {
		attrs = append(attrs, logfields.Phase(lc.Phase))
	}
	return attrs
}

// ContextHandler decorates records with the LogContext carried by the
// context passed to the *Context logging methods.
type ContextHandler struct {
	slog.Handler
}

// Handle adds context attributes before delegating.
func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := Attrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the decoration on derived handlers.
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup keeps the decoration on derived handlers.
func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// NewLogger builds the process logger. format "json" selects the JSON
// handler; anything else is text.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(ContextHandler{Handler: h})
}

// WithContextHandler returns l decorated with ContextHandler unless it
// already is.
func WithContextHandler(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if _, ok := l.Handler().(ContextHandler); ok {
		return l
	}
	return slog.New(ContextHandler{Handler: l.Handler()})
}
