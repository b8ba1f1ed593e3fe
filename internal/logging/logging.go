// Package logging builds the zap logger shared by the server and the CLI.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/formmatic/formmatic/internal/gelf"
)

// Options controls logger construction.
type Options struct {
	Level    string // debug, info, warn, error
	GelfAddr string // optional Graylog UDP input
	Service  string
	Console  bool // human-readable output for the CLI
}

// New returns a logger writing JSON to stderr, teed into GELF when
// GelfAddr is set. A GELF dial failure is logged and otherwise ignored.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(defaultString(opts.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	config := zap.NewProductionConfig()
	if opts.Console {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}

	service := defaultString(opts.Service, "formmatic")
	logger = logger.With(zap.String("service", service))
	if opts.GelfAddr == "" {
		return logger, nil
	}

	w, err := gelf.New(opts.GelfAddr, service)
	if err != nil {
		logger.Warn("GELF init failed", zap.String("addr", opts.GelfAddr), zap.Error(err))
		return logger, nil
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	gelfCore := zapcore.NewCore(encoder, w, level)
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, gelfCore)
	}))
	logger.Info("GELF logging enabled", zap.String("addr", opts.GelfAddr))
	return logger, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
