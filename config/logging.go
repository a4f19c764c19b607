package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global *zap.Logger

// LogWriter receives a copy of every log line. The monitor page tails the file behind it.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the default path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "research-api.log")
}

// InitLogging builds the global zap logger. Output goes to stdout and, when
// logFile is non-empty, is appended to that file as well.
func InitLogging(level, format, logFile string) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if err := lvl.Set(strings.ToLower(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.MessageKey = "message"
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encoderCfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	LogWriter = os.Stdout
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), os.ModePerm); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to create logs directory: %v\n", err)
		} else if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to open log file: %v\n", err)
		} else {
			LogWriter = io.MultiWriter(os.Stdout, f)
		}
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(LogWriter), lvl)
	global = zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(global)
	return global, nil
}

// L returns the global logger, or a no-op logger before InitLogging runs.
func L() *zap.Logger {
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// SetLogger replaces the global logger. Used by tests.
func SetLogger(l *zap.Logger) { global = l }

// SyncLogging flushes any buffered log entries.
func SyncLogging() {
	if global != nil {
		_ = global.Sync()
	}
}
