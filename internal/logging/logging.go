// Package logging builds the zap logger shared by every command.
package logging

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fieldops/internal/fsstore"
)

// Stderr as Options.File sends logs to the terminal instead of a file.
const Stderr = "-"

type Options struct {
	Level string
	File  string
	// Verbose forces debug level.
	Verbose bool
}

// New builds a production JSON logger. Logging to a file keeps TUI screens clean.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil

	out := strings.TrimSpace(opts.File)
	switch out {
	case "", Stderr:
		config.OutputPaths = []string{"stderr"}
	default:
		if err := fsstore.Mkdir(filepath.Dir(out), fsstore.PrivateDirPerm); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		config.OutputPaths = []string{out}
	}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func ParseLevel(raw string) (zapcore.Level, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}
