package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap/zapcore"
)

// Level is a severity of a log message.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = map[Level]string{ //nolint:gochecknoglobals
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

// levelColors maps a level to the color of the message text.
var levelColors = map[Level]color.Attribute{ //nolint:gochecknoglobals
	LevelDebug:    color.FgHiBlack,  // gray
	LevelInfo:     color.FgHiBlue,   // blue
	LevelWarning:  color.FgHiYellow, // yellow
	LevelError:    color.FgHiRed,    // red
	LevelCritical: color.FgHiRed,    // red
}

func (l Level) String() string {
	if v, ok := levelNames[l]; ok {
		return v
	}
	return fmt.Sprintf("Level(%d)", int8(l))
}

// ParseLevel converts a level name, case-insensitive, to the Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	default:
		return LevelInfo, fmt.Errorf(`unknown log level "%s"`, s)
	}
}

// zapLevel maps the Level to the zap level used by the core.
// CRITICAL is written as DPanic, the logger is never built in development mode, so it does not panic.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}
