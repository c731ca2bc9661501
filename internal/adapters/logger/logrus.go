// Package logger implements ports.Logger on logrus, with console output plus
// an optional size-rotated file via a lumberjack-backed hook.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"swingTraderBot/internal/ports"
)

// Config holds configuration for the logger adapter.
type Config struct {
	Level string // debug, info, warn, error
	// File settings. An empty FilePath disables file output entirely.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// fileHook writes every entry through a second formatter to the rotated file,
// keeping colored console output and plain file output independent.
type fileHook struct {
	formatter logrus.Formatter
	writer    io.Writer
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	formatted, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(formatted)
	return err
}

// Logger adapts a dedicated logrus instance to ports.Logger.
type Logger struct {
	log      *logrus.Logger
	fileSink io.Writer
}

// New creates the logger. The returned instance is self-contained; the global
// logrus logger is never touched.
func New(cfg Config) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:            true,
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02 15:04:05",
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
	log.SetOutput(os.Stdout)

	l := &Logger{log: log}

	if cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		sink := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		log.AddHook(&fileHook{
			writer: sink,
			formatter: &logrus.TextFormatter{
				DisableColors:   true,
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			},
		})
		l.fileSink = sink
	}

	return l, nil
}

// Close flushes and closes the rotated file sink, if any.
func (l *Logger) Close() error {
	if closer, ok := l.fileSink.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func mergeFields(fields []map[string]interface{}) logrus.Fields {
	merged := logrus.Fields{}
	for _, m := range fields {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Debug(msg)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Info(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Warn(msg)
}

func (l *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	entry := l.log.WithFields(mergeFields(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

var _ ports.Logger = (*Logger)(nil)
