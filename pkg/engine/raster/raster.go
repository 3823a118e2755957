// Package raster converts SVG documents to PNG bitmaps with tdewolff/canvas.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/engine"
)

// Engine is the [engine.Rasterizer] backend. It holds no state and is safe
// for concurrent use.
type Engine struct{}

// New returns the rasterizer.
func New(ctx context.Context) (engine.Handle, error) {
	return &Engine{}, nil
}

// Rasterize draws svg and returns a PNG of exactly width×height pixels.
// Text is drawn with fonts, matched by font-family and font-weight.
//
// Recognized options:
//   - supersample (int, default 1): draw at N times the target resolution and
//     downsample, for smoother edges on thin strokes
func (e *Engine) Rasterize(ctx context.Context, svg []byte, width, height int, fonts []card.FontFace, opts card.EngineOptions) (out []byte, err error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	// canvas panics on input it cannot draw.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("rasterize: %v", r)
		}
	}()

	faces, err := newFaceSet(fonts)
	if err != nil {
		return nil, err
	}
	svg, err = outlineText(svg, faces)
	if err != nil {
		return nil, err
	}
	c, err := canvas.ParseSVG(bytes.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if c.W <= 0 || c.H <= 0 {
		return nil, fmt.Errorf("svg has no extent")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ss := opts.Int("supersample", 1)
	if ss < 1 {
		ss = 1
	}
	res := canvas.Resolution(float64(width*ss) / c.W)
	img := rasterizer.Draw(c, res, canvas.DefaultColorSpace)

	return encodePNG(fit(img, width, height))
}

// fit scales img to exactly width×height when the drawn extent differs.
func fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }

var _ engine.Rasterizer = (*Engine)(nil)
