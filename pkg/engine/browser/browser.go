// Package browser captures HTML screenshots with a headless Chromium driven
// over the DevTools protocol by go-rod.
//
// The engine either launches a local browser binary or connects to a
// running one through Config.ControlURL. Launching a browser is slow and
// only possible where a binary is installed, so the engine is disabled
// unless explicitly enabled in configuration and detected by [Detect].
package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/engine"
	"github.com/matzehuels/linkcard/pkg/engine/vector"
)

// Config selects how the browser is obtained.
type Config struct {
	// Enabled opts in to screenshot rendering.
	Enabled bool `toml:"enabled"`
	// Bin is the browser binary. Empty looks up an installed browser.
	Bin string `toml:"bin"`
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string `toml:"control_url"`
	// NoSandbox disables the Chromium sandbox, needed in most containers.
	NoSandbox bool `toml:"no_sandbox"`
}

// Detect reports whether a browser can be obtained with cfg.
func Detect(cfg Config) bool {
	if !cfg.Enabled {
		return false
	}
	if cfg.ControlURL != "" {
		return true
	}
	if cfg.Bin != "" {
		_, err := os.Stat(cfg.Bin)
		return err == nil
	}
	_, found := launcher.LookPath()
	return found
}

// Engine is the [engine.Browser] backend. Each screenshot uses its own
// page; the browser connection is shared.
type Engine struct {
	browser *rod.Browser
	l       *launcher.Launcher
}

// New returns a factory that launches or connects to the browser.
func New(cfg Config) engine.Factory {
	return func(ctx context.Context) (engine.Handle, error) {
		if !cfg.Enabled {
			return nil, fmt.Errorf("browser engine is disabled")
		}

		var l *launcher.Launcher
		u := cfg.ControlURL
		if u == "" {
			l = launcher.New().Headless(true).Leakless(true)
			if cfg.Bin != "" {
				l = l.Bin(cfg.Bin)
			}
			if cfg.NoSandbox {
				l = l.NoSandbox(true)
			}
			var err error
			if u, err = l.Launch(); err != nil {
				return nil, fmt.Errorf("launch browser: %w", err)
			}
		}

		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			if l != nil {
				l.Kill()
			}
			return nil, fmt.Errorf("connect browser: %w", err)
		}
		return &Engine{browser: b, l: l}, nil
	}
}

// Screenshot loads html into a width×height viewport and captures it.
//
// Recognized options:
//   - scale (float, default 1): device scale factor
//   - wait_idle (bool, default false): wait for the page to go idle after
//     load, up to one second
func (e *Engine) Screenshot(ctx context.Context, html string, width, height int, opts card.EngineOptions) ([]byte, error) {
	page, err := e.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: opts.Float("scale", 1),
	})
	if err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	if opts.Bool("wait_idle", false) {
		if err := page.WaitIdle(time.Second); err != nil {
			return nil, fmt.Errorf("wait idle: %w", err)
		}
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return data, nil
}

// Close disconnects and stops a launched browser.
func (e *Engine) Close() error {
	err := e.browser.Close()
	if e.l != nil {
		e.l.Kill()
		e.l.Cleanup()
	}
	return err
}

var _ engine.Browser = (*Engine)(nil)

// Document builds the HTML page a screenshot is taken of. Complete HTML
// documents get the font faces injected into their head; fragments and SVG
// are placed in a body sized to the viewport.
func Document(rc card.RenderContext) string {
	style := fmt.Sprintf("<style>%shtml,body{margin:0;padding:0;width:%dpx;height:%dpx;overflow:hidden}</style>",
		vector.FontFaceCSS(rc.Fonts), rc.Width, rc.Height)

	tree := strings.TrimSpace(rc.Tree)
	lower := strings.ToLower(tree)
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		if i := strings.Index(lower, "<head>"); i >= 0 {
			i += len("<head>")
			return tree[:i] + style + tree[i:]
		}
		if i := strings.Index(lower, "<body"); i >= 0 {
			return tree[:i] + "<head>" + style + "</head>" + tree[i:]
		}
	}
	return `<!DOCTYPE html><html><head><meta charset="utf-8">` + style + "</head><body>" + tree + "</body></html>"
}
