package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Key constants for structured log fields.
const (
	KeyComponent = "component"
	KeyPhase     = "phase"
	KeyAccount   = "account"
	KeyAction    = "action"
	KeyPackage   = "package"
	KeyProfile   = "profile"
	KeyError     = "error"
)

// deferredHandler forwards to whatever handler Init installed last, so
// package-level loggers built at init time follow later configuration.
// WithAttrs and WithGroup calls are recorded and replayed in order on the
// current target.
type deferredHandler struct {
	target *atomic.Pointer[slog.Handler]
	steps  []derivation
}

// derivation is one recorded WithAttrs (group == "") or WithGroup call.
type derivation struct {
	group string
	attrs []slog.Attr
}

func newDeferredHandler(h slog.Handler) *deferredHandler {
	target := new(atomic.Pointer[slog.Handler])
	target.Store(&h)
	return &deferredHandler{target: target}
}

func (h *deferredHandler) install(handler slog.Handler) {
	h.target.Store(&handler)
}

func (h *deferredHandler) resolve() slog.Handler {
	handler := *h.target.Load()
	for _, step := range h.steps {
		if step.group != "" {
			handler = handler.WithGroup(step.group)
		} else {
			handler = handler.WithAttrs(step.attrs)
		}
	}
	return handler
}

func (h *deferredHandler) derive(step derivation) *deferredHandler {
	steps := make([]derivation, 0, len(h.steps)+1)
	steps = append(steps, h.steps...)
	return &deferredHandler{target: h.target, steps: append(steps, step)}
}

func (h *deferredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*h.target.Load()).Enabled(ctx, level)
}

func (h *deferredHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.resolve().Handle(ctx, record)
}

func (h *deferredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.derive(derivation{attrs: append([]slog.Attr(nil), attrs...)})
}

func (h *deferredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(derivation{group: name})
}

// Until Init runs only warnings reach stderr. stdout is reserved for the
// operator transcript.
var (
	rootHandler   = newDeferredHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	defaultLogger = slog.New(rootHandler)
)

func init() {
	slog.SetDefault(defaultLogger)
}

// Init points every logger at output with the given format ("text" or
// "json") and level. A nil output means stderr.
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	if strings.EqualFold(format, "json") {
		rootHandler.install(slog.NewJSONHandler(output, opts))
	} else {
		rootHandler.install(slog.NewTextHandler(output, opts))
	}
	slog.SetDefault(defaultLogger)
}

// L returns a logger tagged with component.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// WithPhase returns a child logger with the remediation phase attached.
func WithPhase(logger *slog.Logger, phase string) *slog.Logger {
	return logger.With(slog.String(KeyPhase, phase))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
