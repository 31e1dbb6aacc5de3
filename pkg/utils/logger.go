package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultService names the log stream when LoggerConfig.Service is empty
const DefaultService = "evoucher"

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	OutputPath string // stdout, stderr, or file path
	Format     string // json or console
	Service    string // value of the "service" field on every entry
}

// NewLogger creates a new structured logger. Every entry carries the
// service name; console output to a terminal stream gets colored levels.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	sink, err := openSink(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	core := zapcore.NewCore(newEncoder(cfg), sink, level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", service)),
	), nil
}

// NewCLILogger creates a console logger on stderr so that command output
// on stdout stays clean
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return NewLogger(LoggerConfig{
		Level:      level,
		OutputPath: "stderr",
		Format:     "console",
		Service:    "voucherctl",
	})
}

func newEncoder(cfg LoggerConfig) zapcore.Encoder {
	if cfg.Format == "json" {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if isStream(cfg.OutputPath) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

func isStream(path string) bool {
	return path == "" || path == "stdout" || path == "stderr"
}

// openSink resolves stdout, stderr or a log file whose directory is
// created on demand
func openSink(path string) (zapcore.WriteSyncer, error) {
	if path == "" {
		path = "stdout"
	}
	if !isStream(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	sink, _, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %s: %w", path, err)
	}
	return sink, nil
}
