// Package logger wraps zap behind a small key/value logging interface.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across the pipeline.
// Arguments after the message are alternating keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
	Named(name string) Logger
	Sync() error
	// Close flushes buffered entries and releases the log file.
	Close() error
}

// Config controls where and at what level logs are written.
type Config struct {
	Level string
	// File, when set, receives JSON logs in addition to the console.
	File string
	// Quiet drops console output below error level.
	Quiet bool
}

type zapLogger struct {
	s    *zap.SugaredLogger
	file io.Closer // shared by derived loggers
}

// New builds a logger that writes human readable lines to stderr and,
// if cfg.File is set, JSON lines to that file.
func New(cfg Config) (Logger, error) {
	level := ParseLevel(cfg.Level)

	consoleLevel := level
	if cfg.Quiet && consoleLevel < zapcore.ErrorLevel {
		consoleLevel = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var file io.Closer
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), consoleLevel),
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), level))
		file = f
	}

	z := zap.New(zapcore.NewTee(cores...))
	return &zapLogger{s: z.Named("review_mining").Sugar(), file: file}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{s: l.s.With(kv...), file: l.file}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{s: l.s.Named(name), file: l.file}
}

func (l *zapLogger) Sync() error {
	return l.s.Sync()
}

// Close syncs and closes the log file. Console sync errors are ignored;
// stderr rejects fsync on most terminals.
func (l *zapLogger) Close() error {
	_ = l.s.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
