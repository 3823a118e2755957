// Package encode transcodes PNG bitmaps to other formats with
// disintegration/imaging.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/engine"
)

// DefaultJPEGQuality is used when no quality override is given.
const DefaultJPEGQuality = 90

var formats = map[card.Format]imaging.Format{
	card.FormatPNG:  imaging.PNG,
	card.FormatJPEG: imaging.JPEG,
	card.FormatGIF:  imaging.GIF,
	card.FormatTIFF: imaging.TIFF,
	card.FormatBMP:  imaging.BMP,
}

// Engine is the [engine.Encoder] backend. It is stateless.
type Engine struct{}

// New returns the encoder.
func New(ctx context.Context) (engine.Handle, error) {
	return &Engine{}, nil
}

// Supports reports whether f is a bitmap format imaging can write.
func (e *Engine) Supports(f card.Format) bool {
	_, ok := formats[f]
	return ok
}

// Transcode decodes data and re-encodes it as to.
//
// Recognized options:
//   - quality (int, 1-100): JPEG quality
//   - background (string, "#rrggbb"): fill behind transparent pixels for
//     formats without alpha, white by default
func (e *Engine) Transcode(ctx context.Context, data []byte, to card.Format, opts card.EngineOptions) ([]byte, error) {
	f, ok := formats[to]
	if !ok {
		return nil, fmt.Errorf("encoder cannot produce %s", to)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var encOpts []imaging.EncodeOption
	if to == card.FormatJPEG {
		bg, err := parseHexColor(opts.String("background", "#ffffff"))
		if err != nil {
			return nil, err
		}
		img = flatten(img, bg)
		q := opts.Int("quality", DefaultJPEGQuality)
		if q < 1 || q > 100 {
			return nil, fmt.Errorf("jpeg quality %d out of range 1-100", q)
		}
		encOpts = append(encOpts, imaging.JPEGQuality(q))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, encOpts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", to, err)
	}
	return buf.Bytes(), nil
}

// flatten composites img over an opaque background.
func flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	base := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(base, img, image.Pt(0, 0), 1.0)
}

func parseHexColor(s string) (color.NRGBA, error) {
	var c color.NRGBA
	c.A = 0xff
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }

var _ engine.Encoder = (*Engine)(nil)
