package log

import (
	"context"
	"io"
	"log/slog"

	tserrors "github.com/YuminosukeSato/tabsearch/pkg/errors"
)

const (
	ErrAttrKey        = ErrorKey
	StacktraceAttrKey = "stacktrace"
)

// SlogProvider is a LoggerProvider backed by log/slog's JSON handler. Error
// attributes carrying a cockroachdb/errors stack get a "stacktrace" attribute.
type SlogProvider struct {
	level  *slog.LevelVar
	logger *slog.Logger
}

// NewSlogProvider creates a provider writing JSON records to w.
func NewSlogProvider(w io.Writer, level Level) *SlogProvider {
	lv := &slog.LevelVar{}
	lv.Set(slog.Level(level))
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	})
	return &SlogProvider{level: lv, logger: slog.New(WrapByErrFmtHandler(handler))}
}

// GetLogger implements LoggerProvider.
func (p *SlogProvider) GetLogger() Logger {
	return &slogLogger{logger: p.logger}
}

// GetLoggerWithName implements LoggerProvider.
func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{logger: p.logger.With(ComponentKey, name)}
}

// SetLevel implements LoggerProvider.
func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

// InstallWarningHandler routes errors.Warn through this provider at warn level.
func (p *SlogProvider) InstallWarningHandler() {
	logger := p.GetLoggerWithName("warnings")
	tserrors.SetZerologWarnFunc(func(w error) {
		logger.Warn(w.Error(), "warning_type", tserrors.Kind(w))
	})
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Debug(msg string, fields ...any) {
	l.logger.Debug(msg, normalizeFields(fields)...)
}

func (l *slogLogger) Info(msg string, fields ...any) {
	l.logger.Info(msg, normalizeFields(fields)...)
}

func (l *slogLogger) Warn(msg string, fields ...any) {
	l.logger.Warn(msg, normalizeFields(fields)...)
}

func (l *slogLogger) Error(msg string, fields ...any) {
	l.logger.Error(msg, normalizeFields(fields)...)
}

func (l *slogLogger) With(fields ...any) Logger {
	return &slogLogger{logger: l.logger.With(normalizeFields(fields)...)}
}

func (l *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.logger.Enabled(ctx, slog.Level(level))
}

// normalizeFields turns a bare error in key position into ErrAttr.
func normalizeFields(fields []any) []any {
	out := make([]any, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		if err, ok := fields[i].(error); ok {
			out = append(out, ErrAttr(err))
			continue
		}
		out = append(out, fields[i])
		if i+1 < len(fields) {
			out = append(out, fields[i+1])
			i++
		}
	}
	return out
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// ErrFmtHandler is a slog handler to format stacktrace from cockroachdb/errors.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler so that records with an error attribute
// also carry its stack trace.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var stacktrace string
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == ErrAttrKey {
			if err, ok := attr.Value.Any().(error); ok {
				stacktrace = extractStacktrace(err)
			}
			return false
		}
		return true
	})
	if stacktrace != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, stacktrace))
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}
