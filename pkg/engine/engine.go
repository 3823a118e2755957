// Package engine owns the process-wide rendering and encoding engines.
//
// # Overview
//
// Rendering engines are expensive to initialize: the QuickJS runtime and
// Graphviz compile embedded WASM modules, the browser engine launches a
// Chromium process. A [Registry] constructs each engine lazily on first use
// and hands the same [Handle] to every later caller:
//
//	reg := engine.NewRegistry(builtin.Factories(cfg), logger)
//	defer reg.Close()
//
//	raster, err := reg.Rasterizer(ctx)
//	if err != nil {
//	    // ENGINE_UNAVAILABLE; a later call retries initialization
//	}
//	png, err := raster.Rasterize(ctx, svg, 1200, 630, rc.Fonts, nil)
//
// Handles are borrowed, never copied or closed by callers. Every backend is
// safe for concurrent use, serializing internally where its library is not.
//
// # Backends
//
// Backends live in subpackages and are registered through [Factories]:
//   - script: QuickJS evaluation of JavaScript card templates
//   - vector: visual tree to SVG, with Graphviz for DOT trees
//   - raster: SVG to PNG
//   - browser: headless Chromium screenshots
//   - encode: PNG to JPEG, GIF, TIFF and BMP
package engine

import (
	"context"

	"github.com/matzehuels/linkcard/pkg/card"
)

// Kind identifies an engine.
type Kind string

// Engine kinds.
const (
	KindScript     Kind = "script"
	KindVector     Kind = "vector"
	KindRasterizer Kind = "rasterizer"
	KindBrowser    Kind = "browser"
	KindEncoder    Kind = "encoder"
)

// Kinds lists every engine kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindScript, KindVector, KindRasterizer, KindBrowser, KindEncoder}
}

// Handle is an initialized engine owned by the registry.
type Handle interface {
	// Close releases the engine. Only the registry calls it.
	Close() error
}

// Factory initializes an engine. It may block for a long time.
type Factory func(ctx context.Context) (Handle, error)

// Factories maps engine kinds to their constructors.
type Factories map[Kind]Factory

// Script evaluates JavaScript card templates.
type Script interface {
	Handle
	// Eval runs source, which must define a render function, calls it with
	// args encoded as JSON values and returns the markup it produced.
	Eval(ctx context.Context, name, source string, args ...any) (string, error)
}

// Vector converts a resolved visual tree to a standalone SVG document.
type Vector interface {
	Handle
	RenderSVG(ctx context.Context, rc card.RenderContext) ([]byte, error)
}

// Rasterizer converts SVG to a PNG of exactly width×height pixels. Text is
// drawn with the given faces.
type Rasterizer interface {
	Handle
	Rasterize(ctx context.Context, svg []byte, width, height int, fonts []card.FontFace, opts card.EngineOptions) ([]byte, error)
}

// Browser renders HTML in a headless viewport and captures a PNG.
type Browser interface {
	Handle
	Screenshot(ctx context.Context, html string, width, height int, opts card.EngineOptions) ([]byte, error)
}

// Encoder transcodes a bitmap to another format.
type Encoder interface {
	Handle
	// Supports reports whether the encoder can produce f.
	Supports(f card.Format) bool
	Transcode(ctx context.Context, data []byte, to card.Format, opts card.EngineOptions) ([]byte, error)
}
