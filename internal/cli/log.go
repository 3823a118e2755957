// Package cli implements the linkcard command-line interface.
//
// This package provides commands for serving card images over HTTP,
// rendering single cards, prerendering every configured page, and managing
// the font and image caches. The CLI is built using cobra and logs through
// charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - serve: Serve /image, /font and /debug.json
//   - render: Render one card to a file
//   - prerender: Render every configured page into an output directory
//   - compat: Print the resolved compatibility matrix
//   - fonts: Prefetch remote fonts
//   - cache: Manage the image and font cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Render, engine
// and cache events are logged at debug level through the observability hooks.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Prerendered 12 pages (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// =============================================================================
// Observability Hooks
// =============================================================================

// logHooks reports pipeline events to a logger.
type logHooks struct {
	logger *log.Logger
}

// registerHooks routes render, engine and cache events to l.
func registerHooks(l *log.Logger) {
	h := logHooks{logger: l}
	observability.SetRenderHooks(h)
	observability.SetEngineHooks(h)
	observability.SetCacheHooks(h)
}

func (h logHooks) OnRenderStart(ctx context.Context, template, mode string) {
	h.logger.Debug("render start", "template", template, "mode", mode)
}

func (h logHooks) OnRenderComplete(ctx context.Context, template, mode string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("render failed", "template", template, "mode", mode, "duration", d, "error", err)
		return
	}
	h.logger.Debug("render done", "template", template, "mode", mode, "duration", d)
}

func (h logHooks) OnFallback(ctx context.Context, template, from, to string, cause error) {
	h.logger.Debug("render fell back", "template", template, "from", from, "to", to, "cause", cause)
}

func (h logHooks) OnDowngrade(ctx context.Context, requested, produced string) {
	h.logger.Debug("format downgraded", "requested", requested, "produced", produced)
}

func (h logHooks) OnEngineInit(ctx context.Context, kind string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("engine init failed", "engine", kind, "duration", d, "error", err)
		return
	}
	h.logger.Debug("engine ready", "engine", kind, "duration", d)
}

func (h logHooks) OnCacheHit(ctx context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(ctx context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h logHooks) OnCacheError(ctx context.Context, op string, err error) {
	h.logger.Warn("cache error", "op", op, "error", err)
}
