package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (case-insensitive) into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the minimal logging interface used across tutormesh.
// Args follow slog conventions: alternating keys and values, or slog.Attr.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// TutorLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. It is cheap to copy via the With* methods.
type TutorLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	userID    string
	sessionID string
}

// LoggerConfig configures construction of a TutorLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// NewLogger builds a TutorLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *TutorLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &TutorLogger{logger: slog.New(handler), level: cfg.Level, context: map[string]any{}, component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *TutorLogger) clone() *TutorLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *TutorLogger) WithContext(key string, value any) *TutorLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (router, collab, tutor, etc.).
func (l *TutorLogger) WithComponent(c string) *TutorLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches user and session identifiers.
func (l *TutorLogger) WithSession(userID, sessionID string) *TutorLogger {
	nl := l.clone()
	nl.userID = userID
	nl.sessionID = sessionID
	return nl
}

func (l *TutorLogger) buildAttrs() []any {
	attrs := make([]any, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.userID != "" {
		attrs = append(attrs, slog.String("user_id", l.userID))
	}
	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *TutorLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	l.logger.Log(context.Background(), level, msg, append(l.buildAttrs(), args...)...)
}

// Debug logs at debug level.
func (l *TutorLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *TutorLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *TutorLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *TutorLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogCompletion records latency and outcome of a single completion call.
func (l *TutorLogger) LogCompletion(agent, model string, dur time.Duration, err error) {
	args := []any{slog.String("agent", agent), slog.String("model", model), slog.Duration("duration", dur), slog.Bool("success", err == nil)}
	if err != nil {
		l.Error("Completion call failed", append(args, slog.String("error", err.Error()))...)
		return
	}
	l.Info("Completion call completed", args...)
}

// LogRouting records a routing decision.
func (l *TutorLogger) LogRouting(method, agent string, confidence float64, dur time.Duration) {
	l.Info("Routing decision",
		slog.String("method", method),
		slog.String("agent", agent),
		slog.Float64("confidence", confidence),
		slog.Duration("duration", dur),
	)
}

// LogCollaboration records aggregate metrics of a collaborative turn.
func (l *TutorLogger) LogCollaboration(style string, participants, failures int, dur time.Duration) {
	args := []any{
		slog.String("style", style),
		slog.Int("participants", participants),
		slog.Int("failures", failures),
		slog.Duration("duration", dur),
	}
	if failures > 0 {
		l.Warn("Collaboration completed with failed agents", args...)
		return
	}
	l.Info("Collaboration completed", args...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new TutorLogger with the specified level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *TutorLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

// Component scopes l to a named component when l is a TutorLogger and
// returns it unchanged otherwise.
func Component(l Logger, name string) Logger {
	if tl, ok := l.(*TutorLogger); ok {
		return tl.WithComponent(name)
	}
	return l
}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// DomainLogger adds the tutor specific helpers to Logger.
type DomainLogger interface {
	Logger
	LogCompletion(agent, model string, dur time.Duration, err error)
	LogRouting(method, agent string, confidence float64, dur time.Duration)
	LogCollaboration(style string, participants, failures int, dur time.Duration)
}

var _ DomainLogger = (*TutorLogger)(nil)

// AsDomain returns l as a DomainLogger. Plain loggers get the helpers as
// generic key/value records; nil yields a no-op.
func AsDomain(l Logger) DomainLogger {
	if dl, ok := l.(DomainLogger); ok {
		return dl
	}
	return domainAdapter{OrNoOp(l)}
}

type domainAdapter struct{ Logger }

func (d domainAdapter) LogCompletion(agent, model string, dur time.Duration, err error) {
	if err != nil {
		d.Error("Completion call failed", "agent", agent, "model", model, "duration", dur, "error", err)
		return
	}
	d.Info("Completion call completed", "agent", agent, "model", model, "duration", dur)
}

func (d domainAdapter) LogRouting(method, agent string, confidence float64, dur time.Duration) {
	d.Info("Routing decision", "method", method, "agent", agent, "confidence", confidence, "duration", dur)
}

func (d domainAdapter) LogCollaboration(style string, participants, failures int, dur time.Duration) {
	d.Info("Collaboration completed", "style", style, "participants", participants, "failures", failures, "duration", dur)
}
