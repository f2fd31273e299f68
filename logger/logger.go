package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatPretty  = "pretty"
)

// Logger is a zerolog.Logger bound to a service name. Derived loggers share
// the parent's writer and level.
type Logger struct {
	logger  zerolog.Logger
	service string
}

// Init installs a logger built from cfg as the global logger.
func Init(cfg *Config) {
	cfg.ApplyDefaults()
	l := New(cfg, "")
	SetGlobalLogger(l)
	log.Logger = l.logger
}

// New builds a logger writing to the output named in cfg.
func New(cfg *Config, serviceName string) *Logger {
	return NewWithWriter(cfg, outputWriter(cfg.Output), serviceName)
}

// NewWithWriter builds a logger writing to w. An unknown level falls back to
// info.
func NewWithWriter(cfg *Config, w io.Writer, serviceName string) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if isConsole(cfg.Format) {
		w = consoleWriter(w, cfg.NoColor)
	}

	zc := zerolog.New(w).Level(level).With()
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if cfg.Caller {
		zc = zc.Caller()
	}
	if serviceName != "" {
		zc = zc.Str(FieldService, serviceName)
	}
	return &Logger{logger: zc.Logger(), service: serviceName}
}

// NewDefault builds an info-level console logger on stdout.
func NewDefault(serviceName string) *Logger {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return New(cfg, serviceName)
}

// NewFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT and LOG_NO_COLOR.
func NewFromEnv(serviceName string) *Logger {
	cfg := &Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
		Output:  os.Getenv("LOG_OUTPUT"),
		NoColor: os.Getenv("LOG_NO_COLOR") == "true",
	}
	cfg.ApplyDefaults()
	return New(cfg, serviceName)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{logger: fn(l.logger.With()).Logger(), service: l.service}
}

// WithContext adds the trace and span ids of the span active in ctx. It
// returns l itself when there is none.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.with(func(zc zerolog.Context) zerolog.Context {
		return zc.Str(FieldTraceID, sc.TraceID().String()).Str(FieldSpanID, sc.SpanID().String())
	})
}

func (l *Logger) WithComponent(name string) *Logger {
	return l.with(func(zc zerolog.Context) zerolog.Context {
		return zc.Str(FieldComponent, name)
	})
}

// WithRun tags every line with the identity of one run. Empty values are
// left out.
func (l *Logger) WithRun(runID, parentRunID, name, kind string) *Logger {
	return l.with(func(zc zerolog.Context) zerolog.Context {
		for _, f := range [...][2]string{
			{FieldRunID, runID},
			{FieldParentRunID, parentRunID},
			{FieldRunnable, name},
			{FieldRunKind, kind},
		} {
			if f[1] != "" {
				zc = zc.Str(f[0], f[1])
			}
		}
		return zc
	})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(func(zc zerolog.Context) zerolog.Context {
		return zc.Fields(fields)
	})
}

func (l *Logger) WithError(err error) *Logger {
	return l.with(func(zc zerolog.Context) zerolog.Context {
		return zc.Err(err)
	})
}

// GetLogger returns the underlying zerolog.Logger.
func (l *Logger) GetLogger() zerolog.Logger {
	return l.logger
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	write(l.logger.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	write(l.logger.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	write(l.logger.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	write(l.logger.Error(), msg, fields)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	write(l.logger.Fatal(), msg, fields)
}

// write is a no-op for a disabled level; zerolog returns a nil event then.
func write(event *zerolog.Event, msg string, fields []map[string]interface{}) {
	if event == nil {
		return
	}
	for _, fm := range fields {
		event.Fields(fm)
	}
	event.Msg(msg)
}

var globalLogger atomic.Pointer[Logger]

// SetGlobalLogger replaces the global logger.
func SetGlobalLogger(l *Logger) { globalLogger.Store(l) }

// GetGlobalLogger returns the global logger, installing NewDefault on first
// use.
func GetGlobalLogger() *Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	globalLogger.CompareAndSwap(nil, NewDefault(""))
	return globalLogger.Load()
}

func Debug(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...map[string]interface{}) {
	GetGlobalLogger().Fatal(msg, fields...)
}

// WithComponent derives a component logger from the global logger.
func WithComponent(name string) *Logger {
	return GetGlobalLogger().WithComponent(name)
}

func isConsole(format string) bool {
	switch strings.ToLower(format) {
	case FormatConsole, FormatPretty, "text":
		return true
	}
	return false
}

func outputWriter(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

var levelTags = map[string]struct {
	tag   string
	color int
}{
	"debug": {"DBG", 36},
	"info":  {"INF", 32},
	"warn":  {"WRN", 33},
	"error": {"ERR", 31},
	"fatal": {"FTL", 35},
}

// consoleWriter renders "15:04:05 [INF] message key:value" lines.
func consoleWriter(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
		FormatLevel: func(i interface{}) string {
			lvl, ok := levelTags[fmt.Sprint(i)]
			switch {
			case !ok:
				return "[" + strings.ToUpper(fmt.Sprint(i)) + "]"
			case noColor:
				return "[" + lvl.tag + "]"
			}
			return fmt.Sprintf("\033[%dm[%s]\033[0m", lvl.color, lvl.tag)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s:", i)
		},
		FormatFieldValue: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprint(i)
		},
	}
}
