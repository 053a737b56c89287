// Package logger provides a named, leveled console logger with colorized messages.
//
// Each line has the form:
//
//	[2024-12-11 13:42:47] [WebService] <colorized message> {"extra":"value"}
//
// The extra key-value pairs are encoded as a JSON object and omitted if there are none.
// Lines are written by a zap core, so the Logger is safe for concurrent use.
// Messages below the configured level are dropped.
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	timeLayout  = "2006-01-02 15:04:05"
	initMessage = "Initialised Logger..."
)

// Logger writes colorized log lines for a single named component.
type Logger struct {
	name   string
	level  Level
	zap    *zap.Logger
	colors map[Level]*color.Color
}

type config struct {
	level  Level
	writer io.Writer
	color  *bool
}

// Option configures the Logger.
type Option func(c *config)

// WithLevel sets the minimal level of written messages, default is LevelInfo.
func WithLevel(v Level) Option {
	return func(c *config) {
		c.level = v
	}
}

// WithWriter sets output of the logger, default is os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// WithColor forces colors on or off.
// By default, colors are enabled only if the output is a terminal.
func WithColor(enabled bool) Option {
	return func(c *config) {
		c.color = &enabled
	}
}

// Get creates a new Logger bound to the name and logs its initialization.
func Get(name string, opts ...Option) *Logger {
	cfg := config{level: LevelInfo, writer: os.Stdout}
	for _, o := range opts {
		o(&cfg)
	}

	useColor := colorSupported(cfg.writer)
	if cfg.color != nil {
		useColor = *cfg.color
	}

	l := &Logger{
		name:   name,
		level:  cfg.level,
		zap:    zap.New(newCore(cfg.writer, cfg.level)).Named(name),
		colors: make(map[Level]*color.Color, len(levelColors)),
	}
	for level, attr := range levelColors {
		c := color.New(attr)
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		l.colors[level] = c
	}

	// The initialization line is written regardless of the level
	zap.New(newCore(cfg.writer, LevelDebug)).Named(name).Info(l.colorize(LevelInfo, initMessage))
	return l
}

func newCore(w io.Writer, level Level) zapcore.Core {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:    "ts",
		NameKey:    "logger",
		MessageKey: "msg",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format(timeLayout) + "]")
		},
		EncodeName: func(name string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + name + "]")
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(level.zapLevel()),
	)
}

// colorSupported returns true if the writer is a terminal.
func colorSupported(w io.Writer) bool {
	if w == os.Stdout {
		// fatih/color already checked the terminal, NO_COLOR and TERM=dumb
		return !color.NoColor
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Name returns the name the logger is bound to.
func (l *Logger) Name() string {
	return l.name
}

// Level returns the minimal level of written messages.
func (l *Logger) Level() Level {
	return l.level
}

// Enabled returns true if messages of the level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) Debug(message string, extra ...any) {
	l.Log(LevelDebug, message, extra...)
}

func (l *Logger) Info(message string, extra ...any) {
	l.Log(LevelInfo, message, extra...)
}

func (l *Logger) Warning(message string, extra ...any) {
	l.Log(LevelWarning, message, extra...)
}

func (l *Logger) Error(message string, extra ...any) {
	l.Log(LevelError, message, extra...)
}

func (l *Logger) Critical(message string, extra ...any) {
	l.Log(LevelCritical, message, extra...)
}

// Log writes the message with the level.
// Extra arguments are key-value pairs, for example: Log(LevelInfo, "msg", "status", 200).
func (l *Logger) Log(level Level, message string, extra ...any) {
	ce := l.zap.Check(level.zapLevel(), l.colorize(level, message))
	if ce == nil {
		return
	}
	ce.Write(fields(extra)...)
}

// Func logs execution of the function fn and its duration.
func (l *Logger) Func(name string, fn func() error) error {
	l.Info("Executing: " + name)
	start := time.Now()
	err := fn()
	l.Info("Completed: " + name)
	l.Info(fmt.Sprintf("Duration: %ss", formatSeconds(time.Since(start))))
	return err
}

// Sync flushes buffered log lines, if any.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) colorize(level Level, message string) string {
	if c, ok := l.colors[level]; ok {
		return c.Sprint(message)
	}
	return message
}

func fields(extra []any) []zap.Field {
	if len(extra) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, (len(extra)+1)/2)
	for i := 0; i < len(extra); i += 2 {
		key := fmt.Sprint(extra[i])
		if i+1 == len(extra) {
			// Odd number of arguments, value is missing
			out = append(out, zap.Any("!BADKEY", extra[i]))
			break
		}
		out = append(out, zap.Any(key, extra[i+1]))
	}
	return out
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
