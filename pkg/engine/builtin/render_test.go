package builtin

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/render"
	"github.com/matzehuels/linkcard/pkg/template"
)

// newRenderer wires the shipped engines and templates without a browser.
func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	engines := engine.NewRegistry(Factories(Options{Offline: true}), logger)
	t.Cleanup(func() { engines.Close() })

	tmpls, err := template.NewRegistry(logger, template.BuiltinSource())
	if err != nil {
		t.Fatal(err)
	}
	return render.New(render.Config{
		Engines:   engines,
		Templates: tmpls,
		Matrix: compat.NewMatrix(map[compat.Phase][]compat.Engine{
			compat.PhaseRuntime: {compat.EngineVector, compat.EngineRasterizer, compat.EngineEncoder},
		}),
		Phase:  compat.PhaseRuntime,
		Logger: logger,
	})
}

func TestBuiltinTemplatesRender(t *testing.T) {
	if testing.Short() {
		t.Skip("renders with the real engines")
	}
	r := newRenderer(t)

	props := map[string]any{
		"title":       "Hello, linkcard",
		"description": "Open Graph images for every page",
		"site":        "example.com",
		"tags":        []any{"go", "svg"},
		"nodes":       []any{"request", "render", "cache"},
	}
	for _, name := range []string{"basic", "modern", "graph"} {
		for _, format := range []card.Format{card.FormatPNG, card.FormatJPEG} {
			t.Run(name+"/"+string(format), func(t *testing.T) {
				opts := card.DefaultOptions()
				opts.Template = name
				opts.Format = format
				opts.Width, opts.Height = 600, 315

				img, err := r.Render(context.Background(), card.Request{Route: "/blog/hello", Options: opts, Props: props})
				if err != nil {
					t.Fatalf("Render: %v", err)
				}
				if img.Format != format || img.Mode != card.ModeVector {
					t.Errorf("image = %s/%s, want %s from vector", img.Mode, img.Format, format)
				}

				decoded, kind, err := image.Decode(bytes.NewReader(img.Data))
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if kind != string(format) {
					t.Errorf("decoded as %s, want %s", kind, format)
				}
				if b := decoded.Bounds(); b.Dx() != 600 || b.Dy() != 315 {
					t.Errorf("size = %dx%d, want 600x315", b.Dx(), b.Dy())
				}
				if n := distinctColors(decoded, 3); n < 3 {
					t.Errorf("image has %d distinct colors, want a drawn card", n)
				}
			})
		}
	}
}

func TestBuiltinHTMLTemplateNeedsBrowser(t *testing.T) {
	r := newRenderer(t)

	opts := card.DefaultOptions()
	opts.Template = "article"
	_, err := r.Render(context.Background(), card.Request{Route: "/", Options: opts})
	if !errors.Is(err, errors.ErrCodeNoRendererAvailable) {
		t.Errorf("error = %v, want NO_RENDERER_AVAILABLE", err)
	}
}

// distinctColors counts opaque colors in img, stopping at limit.
func distinctColors(img image.Image, limit int) int {
	seen := make(map[[3]uint32]bool, limit)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			seen[[3]uint32{r, g, bl}] = true
			if len(seen) >= limit {
				return len(seen)
			}
		}
	}
	return len(seen)
}
