package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/fonts"
	"github.com/matzehuels/linkcard/pkg/template"
)

// =============================================================================
// Stub engines
// =============================================================================

type stubVector struct {
	calls atomic.Int32
	// failures is the number of leading calls that fail.
	failures int32

	mu  sync.Mutex
	rcs []card.RenderContext
}

func (s *stubVector) RenderSVG(ctx context.Context, rc card.RenderContext) ([]byte, error) {
	n := s.calls.Add(1)
	s.mu.Lock()
	s.rcs = append(s.rcs, rc)
	s.mu.Unlock()
	if n <= s.failures {
		return nil, fmt.Errorf("vector crash %d", n)
	}
	return []byte("<svg>" + rc.Tree + "</svg>"), nil
}

func (s *stubVector) Close() error { return nil }

type stubRaster struct {
	calls atomic.Int32
	// failures is the number of leading calls that fail; panics makes them
	// panic instead of returning an error.
	failures int32
	panics   bool
}

func (s *stubRaster) Rasterize(ctx context.Context, svg []byte, w, h int, fonts []card.FontFace, opts card.EngineOptions) ([]byte, error) {
	if n := s.calls.Add(1); n <= s.failures {
		if s.panics {
			panic("failed to find font 'Go'")
		}
		return nil, fmt.Errorf("raster crash %d", n)
	}
	return []byte(fmt.Sprintf("png[%dx%d]:%s", w, h, svg)), nil
}

func (s *stubRaster) Close() error { return nil }

type stubBrowser struct {
	calls atomic.Int32
	fail  bool
	hang  bool
}

func (s *stubBrowser) Screenshot(ctx context.Context, html string, w, h int, opts card.EngineOptions) ([]byte, error) {
	s.calls.Add(1)
	if s.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.fail {
		return nil, fmt.Errorf("browser crashed")
	}
	return []byte("shot:" + html), nil
}

func (s *stubBrowser) Close() error { return nil }

type stubEncoder struct{}

func (stubEncoder) Supports(f card.Format) bool { return f == card.FormatJPEG }

func (stubEncoder) Transcode(ctx context.Context, data []byte, to card.Format, opts card.EngineOptions) ([]byte, error) {
	return append([]byte(string(to)+":"), data...), nil
}

func (stubEncoder) Close() error { return nil }

type stubScript struct{}

func (stubScript) Eval(ctx context.Context, name, source string, args ...any) (string, error) {
	props := args[0].(map[string]any)
	return fmt.Sprintf("<text>%v</text>", props["title"]), nil
}

func (stubScript) Close() error { return nil }

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	vector  *stubVector
	raster  *stubRaster
	browser *stubBrowser
	inits   atomic.Int32
	engines *engine.Registry
}

func (f *fixture) factory(h engine.Handle) engine.Factory {
	return func(ctx context.Context) (engine.Handle, error) {
		f.inits.Add(1)
		return h, nil
	}
}

func allEngines() []compat.Engine {
	return []compat.Engine{compat.EngineVector, compat.EngineRasterizer, compat.EngineBrowser, compat.EngineEncoder}
}

func matrixWith(engines ...compat.Engine) compat.Matrix {
	return compat.NewMatrix(map[compat.Phase][]compat.Engine{compat.PhaseRuntime: engines})
}

var testTemplates = fstest.MapFS{
	"basic.svg":   {Data: []byte(`<text>{{xml .Props.title}}</text>`)},
	"graph.dot":   {Data: []byte(`digraph { a -> b }`)},
	"script.js":   {Data: []byte(`function render(p) { return p.title; }`)},
	"emoji.svg":   {Data: []byte(`<text data-emoji="{{.Card.Emoji}}">{{.Card.Font}}</text>`)},
	"article.htm": {Data: []byte(`<h1>{{xml .Props.title}}</h1>`)},
}

func newFixture(t *testing.T, m compat.Matrix, mutate ...func(*Config)) (*fixture, *Renderer) {
	t.Helper()
	f := &fixture{vector: &stubVector{}, raster: &stubRaster{}, browser: &stubBrowser{}}
	logger := log.NewWithOptions(io.Discard, log.Options{})
	f.engines = engine.NewRegistry(engine.Factories{
		engine.KindScript:     f.factory(stubScript{}),
		engine.KindVector:     f.factory(f.vector),
		engine.KindRasterizer: f.factory(f.raster),
		engine.KindBrowser:    f.factory(f.browser),
		engine.KindEncoder:    f.factory(stubEncoder{}),
	}, logger)
	t.Cleanup(func() { f.engines.Close() })

	tmpls, err := template.NewRegistry(logger, template.Source{Name: "test", FS: testTemplates})
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{
		Engines:   f.engines,
		Templates: tmpls,
		Matrix:    m,
		Phase:     compat.PhaseRuntime,
		Logger:    logger,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	return f, New(cfg)
}

func request(opts ...func(*card.RenderOptions)) card.Request {
	o := card.DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return card.Request{Route: "/blog/hello", Options: o, Props: map[string]any{"title": "Hello"}}
}

// =============================================================================
// Validation
// =============================================================================

func TestInvalidDimensionsBeforeAnyEngine(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 630},
		{"negative height", 1200, -1},
		{"too large", 5000, 630},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r := newFixture(t, matrixWith(allEngines()...))
			_, err := r.Render(context.Background(), request(func(o *card.RenderOptions) {
				o.Width, o.Height = tt.width, tt.height
				o.Template = "missing"
			}))
			if !errors.Is(err, errors.ErrCodeInvalidDimensions) {
				t.Errorf("error = %v, want INVALID_DIMENSIONS", err)
			}
			if f.inits.Load() != 0 {
				t.Errorf("%d engines initialized, want 0", f.inits.Load())
			}
		})
	}
}

func TestTemplateNotFoundBeforeAnyEngine(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...))
	_, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Template = "missing" }))

	if !errors.Is(err, errors.ErrCodeTemplateNotFound) {
		t.Errorf("error = %v, want TEMPLATE_NOT_FOUND", err)
	}
	if f.inits.Load() != 0 {
		t.Errorf("%d engines initialized, want 0", f.inits.Load())
	}
}

// =============================================================================
// Strategy selection
// =============================================================================

func TestVectorPNG(t *testing.T) {
	_, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeVector || img.Format != card.FormatPNG || img.FellBack || img.Downgraded() {
		t.Errorf("image = %+v", img)
	}
	if want := "png[1200x630]:<svg><text>Hello</text></svg>"; string(img.Data) != want {
		t.Errorf("data = %q, want %q", img.Data, want)
	}
}

func TestSVGPassthrough(t *testing.T) {
	f, r := newFixture(t, matrixWith(compat.EngineVector))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Format = card.FormatSVG }))
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != card.FormatSVG || img.ContentType() != "image/svg+xml" {
		t.Errorf("image = %+v", img)
	}
	if f.raster.calls.Load() != 0 {
		t.Error("rasterizer should not run for svg output")
	}
}

func TestRequestedModeUnavailableUsesAlternate(t *testing.T) {
	f, r := newFixture(t, matrixWith(compat.EngineVector, compat.EngineRasterizer))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Renderer = card.ModeScreenshot }))
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeVector {
		t.Errorf("mode = %s, want vector", img.Mode)
	}
	if img.FellBack {
		t.Error("selecting the alternate mode is not a fallback")
	}
	if f.browser.calls.Load() != 0 {
		t.Error("browser should not be called")
	}
}

func TestNoRendererAvailable(t *testing.T) {
	f, r := newFixture(t, matrixWith(compat.EngineEncoder))

	img, err := r.Render(context.Background(), request())
	if !errors.Is(err, errors.ErrCodeNoRendererAvailable) {
		t.Errorf("error = %v, want NO_RENDERER_AVAILABLE", err)
	}
	if len(img.Data) != 0 {
		t.Error("terminal errors must not return image bytes")
	}
	if f.vector.calls.Load() != 0 || f.browser.calls.Load() != 0 {
		t.Error("no engine should be called")
	}
}

func TestVectorNeedsRasterizerForBitmaps(t *testing.T) {
	_, r := newFixture(t, matrixWith(compat.EngineVector))

	_, err := r.Render(context.Background(), request())
	if !errors.Is(err, errors.ErrCodeNoRendererAvailable) {
		t.Errorf("error = %v, want NO_RENDERER_AVAILABLE", err)
	}
}

func TestDOTTemplateNeverScreenshotted(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) {
		o.Template = "graph"
		o.Renderer = card.ModeScreenshot
	}))
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeVector || f.browser.calls.Load() != 0 {
		t.Errorf("DOT template should render in vector mode, got %s", img.Mode)
	}
}

func TestScreenshotMode(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) {
		o.Template = "article"
		o.Renderer = card.ModeScreenshot
	}))
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeScreenshot || img.Format != card.FormatPNG {
		t.Errorf("image = %+v", img)
	}
	if !bytes.Contains(img.Data, []byte("<h1>Hello</h1>")) {
		t.Errorf("browser should receive the template document: %q", img.Data)
	}
	if f.raster.calls.Load() != 0 {
		t.Error("screenshot mode must skip the raster pipeline")
	}
}

func TestScriptTemplate(t *testing.T) {
	_, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Template = "script" }))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(img.Data, []byte("<text>Hello</text>")) {
		t.Errorf("data = %q", img.Data)
	}
}

// =============================================================================
// Fallback
// =============================================================================

func TestFallbackToAlternateMode(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...))
	f.vector.failures = 1

	img, err := r.Render(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeScreenshot || !img.FellBack {
		t.Errorf("image = %+v, want screenshot fallback", img)
	}
}

func TestRasterFailureFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
	}{
		{"error", false},
		{"panic", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r := newFixture(t, matrixWith(allEngines()...))
			f.raster.failures = 1
			f.raster.panics = tt.panics

			img, err := r.Render(context.Background(), request())
			if err != nil {
				t.Fatal(err)
			}
			if img.Mode != card.ModeScreenshot || !img.FellBack {
				t.Errorf("image = %+v, want screenshot fallback", img)
			}
			if f.browser.calls.Load() != 1 {
				t.Errorf("browser calls = %d, want 1", f.browser.calls.Load())
			}
		})
	}
}

func TestRasterPanicWithoutAlternateFails(t *testing.T) {
	f, r := newFixture(t, matrixWith(compat.EngineVector, compat.EngineRasterizer))
	f.raster.failures = 2
	f.raster.panics = true

	_, err := r.Render(context.Background(), request())
	if !errors.Is(err, errors.ErrCodeRenderFailed) {
		t.Fatalf("error = %v, want RENDER_FAILED", err)
	}
	if got := f.raster.calls.Load(); got != 2 {
		t.Errorf("raster calls = %d, want 2", got)
	}
}

func TestHTMLTemplateNeverVectorized(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Template = "article" }))
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeScreenshot || img.FellBack {
		t.Errorf("image = %+v, want screenshot without fallback", img)
	}
	if f.vector.calls.Load() != 0 {
		t.Error("vector engine should not see html trees")
	}

	_, r = newFixture(t, matrixWith(compat.EngineVector, compat.EngineRasterizer))
	_, err = r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Template = "article" }))
	if !errors.Is(err, errors.ErrCodeNoRendererAvailable) {
		t.Errorf("error = %v, want NO_RENDERER_AVAILABLE", err)
	}
}

func TestFallbackReducedFidelity(t *testing.T) {
	f, r := newFixture(t, matrixWith(compat.EngineVector, compat.EngineRasterizer))
	f.vector.failures = 1

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) {
		o.Template = "emoji"
		o.Fonts = []card.FontDescriptor{{Name: "Brand", Weight: 700, Embedded: "go-bold"}}
	}))
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeVector || !img.FellBack {
		t.Errorf("image = %+v, want reduced vector fallback", img)
	}
	if got := f.vector.calls.Load(); got != 2 {
		t.Errorf("vector calls = %d, want 2", got)
	}

	retry := f.vector.rcs[1]
	if retry.Emoji != card.EmojiNone {
		t.Errorf("reduced emoji = %s, want none", retry.Emoji)
	}
	if len(retry.Fonts) != 1 || retry.Fonts[0].Descriptor != fonts.DefaultDescriptor() {
		t.Errorf("reduced fonts = %+v, want the default face only", retry.Fonts)
	}
	if first := f.vector.rcs[0]; first.Fonts[0].Descriptor.Name != "Brand" {
		t.Error("first attempt should use the requested fonts")
	}

	// The template is evaluated again, so the retried tree names the
	// fallback font and sees emoji disabled.
	if want := `<text data-emoji="none">Go</text>`; retry.Tree != want {
		t.Errorf("reduced tree = %q, want %q", retry.Tree, want)
	}
	if want := `<text data-emoji="twemoji">Brand</text>`; f.vector.rcs[0].Tree != want {
		t.Errorf("first tree = %q, want %q", f.vector.rcs[0].Tree, want)
	}
	if !bytes.Contains(img.Data, []byte(">Go<")) {
		t.Errorf("image should come from the reduced tree: %q", img.Data)
	}
}

func TestFallbackIsOneShot(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...))
	f.vector.failures = 100
	f.browser.fail = true

	img, err := r.Render(context.Background(), request())
	if !errors.Is(err, errors.ErrCodeRenderFailed) {
		t.Fatalf("error = %v, want RENDER_FAILED", err)
	}
	if len(img.Data) != 0 {
		t.Error("terminal errors must not return image bytes")
	}
	total := f.vector.calls.Load() + f.browser.calls.Load()
	if total != 2 {
		t.Errorf("engine attempts = %d, want exactly 2", total)
	}
}

func TestScreenshotTimeoutFallsBack(t *testing.T) {
	f, r := newFixture(t, matrixWith(allEngines()...), func(c *Config) {
		c.ScreenshotTimeout = 20 * time.Millisecond
	})
	f.browser.hang = true

	start := time.Now()
	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Renderer = card.ModeScreenshot }))
	if err != nil {
		t.Fatal(err)
	}
	if img.Mode != card.ModeVector || !img.FellBack {
		t.Errorf("image = %+v, want vector fallback after timeout", img)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("screenshot timeout was not applied")
	}
}

// =============================================================================
// Raster pipeline
// =============================================================================

func TestJPEGWithEncoder(t *testing.T) {
	_, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Format = card.FormatJPEG }))
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != card.FormatJPEG || img.ContentType() != "image/jpeg" || img.Downgraded() {
		t.Errorf("image = %+v", img)
	}
	if !strings.HasPrefix(string(img.Data), "jpeg:png[") {
		t.Errorf("data = %q", img.Data)
	}
}

func TestJPEGWithoutEncoderDowngrades(t *testing.T) {
	_, r := newFixture(t, matrixWith(compat.EngineVector, compat.EngineRasterizer))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) {
		o.Width, o.Height = 1200, 600
		o.Format = card.FormatJPEG
	}))
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != card.FormatPNG || img.ContentType() != "image/png" {
		t.Errorf("format = %s, want png", img.Format)
	}
	if img.Requested != card.FormatJPEG || !img.Downgraded() {
		t.Errorf("image should be tagged as downgraded from jpeg: %+v", img)
	}
}

func TestUnsupportedEncoderFormatDowngrades(t *testing.T) {
	_, r := newFixture(t, matrixWith(allEngines()...))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) { o.Format = card.FormatGIF }))
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != card.FormatPNG || !img.Downgraded() {
		t.Errorf("image = %+v, want png downgrade", img)
	}
}

func TestScreenshotSVGDowngrades(t *testing.T) {
	_, r := newFixture(t, matrixWith(compat.EngineBrowser))

	img, err := r.Render(context.Background(), request(func(o *card.RenderOptions) {
		o.Template = "article"
		o.Renderer = card.ModeScreenshot
		o.Format = card.FormatSVG
	}))
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != card.FormatPNG || !img.Downgraded() {
		t.Errorf("image = %+v, want png downgrade", img)
	}
}

func TestDeterministic(t *testing.T) {
	_, r := newFixture(t, matrixWith(allEngines()...))

	a, err := r.Render(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Render(context.Background(), request())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("identical requests should produce identical bytes")
	}
}

func TestWithTimeout(t *testing.T) {
	_, err := withTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("error = %v, want TIMEOUT", err)
	}

	v, err := withTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Errorf("withTimeout() = %d, %v", v, err)
	}

	_, err = withTimeout(context.Background(), time.Second, "panicky", func(ctx context.Context) (int, error) {
		panic("boom")
	})
	if !errors.Is(err, errors.ErrCodeRenderFailed) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v, want RENDER_FAILED carrying the panic", err)
	}
}
