package telemetry

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NarrationMode names one of the three independently-gated narration logs
// (spec 6 "Logs"): info.log event narration, probe.log user-inlined probes,
// stats.log raw noise samples.
type NarrationMode string

const (
	ModeInfo  NarrationMode = "info"
	ModeProbe NarrationMode = "probe"
	ModeStats NarrationMode = "stats"
)

var allModes = []NarrationMode{ModeInfo, ModeProbe, ModeStats}

// Registry holds one zap.Logger per enabled LOG_MODE entry. A disabled mode's
// logger is a no-op, so callers never branch on whether logging is enabled.
type Registry struct {
	loggers map[NarrationMode]*zap.Logger
	closers []func() error
}

// NewRegistry builds a Registry with one file-backed logger per mode in
// modes, writing to dir/<mode>.log. Modes not listed get a no-op logger.
func NewRegistry(modes []string, dir string) (*Registry, error) {
	enabled := make(map[NarrationMode]bool, len(modes))
	for _, m := range modes {
		enabled[NarrationMode(m)] = true
	}

	r := &Registry{loggers: make(map[NarrationMode]*zap.Logger, len(allModes))}
	for _, m := range allModes {
		if !enabled[m] {
			r.loggers[m] = zap.NewNop()
			continue
		}
		path := filepath.Join(dir, string(m)+".log")
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		sink, closeSink, err := zap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("telemetry: opening %s: %w", path, err)
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), sink, zapcore.DebugLevel)
		r.loggers[m] = zap.New(core)
		r.closers = append(r.closers, func() error { closeSink(); return nil })
	}
	return r, nil
}

// Info narrates an engine event (spec 6 "info.log event narration").
func (r *Registry) Info(msg string, fields ...zap.Field) {
	r.loggers[ModeInfo].Info(msg, fields...)
}

// Probe records a user-inlined probe point.
func (r *Registry) Probe(msg string, fields ...zap.Field) {
	r.loggers[ModeProbe].Info(msg, fields...)
}

// Stats records a raw noise sample draw.
func (r *Registry) Stats(msg string, fields ...zap.Field) {
	r.loggers[ModeStats].Info(msg, fields...)
}

// Close flushes and closes every file-backed logger in the registry.
func (r *Registry) Close() error {
	for _, l := range r.loggers {
		_ = l.Sync()
	}
	for _, c := range r.closers {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}
