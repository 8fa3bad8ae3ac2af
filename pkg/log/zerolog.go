package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	tserrors "github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// ZerologProvider is the default LoggerProvider. All loggers it hands out share
// one writer and one level, so SetLevel affects loggers created earlier.
type ZerologProvider struct {
	base  zerolog.Logger
	level atomic.Int64
}

// NewZerologProvider creates a provider writing JSON lines to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level, false)
}

// NewZerologProviderWithWriter creates a provider writing to w. With console set,
// records are rendered by zerolog.ConsoleWriter for terminals.
func NewZerologProviderWithWriter(w io.Writer, level Level, console bool) *ZerologProvider {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	p := &ZerologProvider{
		base: zerolog.New(w).With().Timestamp().Logger(),
	}
	p.level.Store(int64(level))
	return p
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{provider: p, logger: p.base}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{provider: p, logger: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

// InstallWarningHandler routes errors.Warn through this provider at warn level.
// Warnings that implement zerolog.LogObjectMarshaler are logged as an object.
func (p *ZerologProvider) InstallWarningHandler() {
	logger := p.GetLoggerWithName("warnings").(*zerologLogger)
	tserrors.SetZerologWarnFunc(func(w error) {
		if !logger.enabled(LevelWarn) {
			return
		}
		ev := logger.logger.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(w.Error())
	})
}

type zerologLogger struct {
	provider *ZerologProvider
	logger   zerolog.Logger
}

func (l *zerologLogger) enabled(level Level) bool {
	return int64(level) >= l.provider.level.Load()
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	if l.enabled(LevelDebug) {
		l.emit(l.logger.Debug(), msg, fields)
	}
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	if l.enabled(LevelInfo) {
		l.emit(l.logger.Info(), msg, fields)
	}
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	if l.enabled(LevelWarn) {
		l.emit(l.logger.Warn(), msg, fields)
	}
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	if l.enabled(LevelError) {
		l.emit(l.logger.Error(), msg, fields)
	}
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.logger.With()
	for i := 0; i < len(fields); i++ {
		if err, ok := fields[i].(error); ok {
			ctx = ctx.AnErr(ErrorKey, err)
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		ctx = ctx.Interface(fmt.Sprint(fields[i]), fields[i+1])
		i++
	}
	return &zerologLogger{provider: l.provider, logger: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.enabled(level)
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	for i := 0; i < len(fields); i++ {
		// A bare error in key position is logged under ErrorKey.
		if err, ok := fields[i].(error); ok {
			ev = addError(ev, ErrorKey, err)
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ev = addError(ev, key, v)
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
		i++
	}
	ev.Msg(msg)
}

func addError(ev *zerolog.Event, key string, err error) *zerolog.Event {
	ev = ev.AnErr(key, err)
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		ev = ev.Object(key+".detail", m)
	}
	if st := extractStacktrace(err); st != "" {
		ev = ev.Str(StacktraceAttrKey, st)
	}
	return ev
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

// SetProvider replaces the process-wide provider used by GetLogger and
// GetLoggerWithName. Loggers obtained earlier keep their old provider.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// Provider returns the process-wide provider.
func Provider() LoggerProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	return Provider().GetLogger()
}

// GetLoggerWithName returns a component logger of the process-wide provider.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}
