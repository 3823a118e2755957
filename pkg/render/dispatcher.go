package render

import (
	"context"
	"time"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine/browser"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/observability"
)

type state int

const (
	stateSelect state = iota
	stateRender
	stateFallback
	stateComplete
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateSelect:
		return "select"
	case stateRender:
		return "render"
	case stateFallback:
		return "fallback"
	case stateComplete:
		return "complete"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// output is the dispatcher's result: the encoded image bytes and the
// format actually produced.
type output struct {
	data     []byte
	format   card.Format
	mode     card.Mode
	fellBack bool
}

// dispatch is the per-request dispatcher state.
type dispatch struct {
	r      *Renderer
	job    *Job
	rc     card.RenderContext
	format card.Format
	want   card.Mode

	mode     card.Mode
	fellBack bool // one-shot: set on entering fallback, never cleared
	lastErr  error
	err      error
	out      output
}

func newDispatch(r *Renderer, job *Job, rc card.RenderContext) *dispatch {
	return &dispatch{r: r, job: job, rc: rc, format: job.Options.Format, want: job.Options.Renderer}
}

// run drives the state machine to a terminal state. Every path reaches
// complete or failed: render leads to complete or fallback, and fallback
// leads to render at most once.
func (d *dispatch) run(ctx context.Context) (output, error) {
	st := stateSelect
	for {
		d.r.logger.Debug("dispatch", "template", d.rc.Template.ID, "state", st, "mode", d.mode)
		switch st {
		case stateSelect:
			st = d.selectStrategy()
		case stateRender:
			st = d.render(ctx)
		case stateFallback:
			st = d.fallback(ctx)
		case stateComplete:
			return d.out, nil
		case stateFailed:
			return output{}, d.err
		}
	}
}

// available reports whether mode can run for this request.
func (d *dispatch) available(mode card.Mode) bool {
	switch {
	case mode == card.ModeScreenshot && d.rc.Template.Kind == card.TreeDOT:
		return false
	case mode == card.ModeVector && d.rc.Template.Kind == card.TreeHTML:
		return false
	}
	f := d.format
	if mode == card.ModeScreenshot {
		// Screenshots never produce SVG; availability is judged on the
		// bitmap the browser captures.
		f = card.NativeFormat
	}
	return d.r.cfg.Matrix.ModeAvailable(d.r.cfg.Phase, mode, f)
}

func (d *dispatch) selectStrategy() state {
	switch {
	case d.available(d.want):
		d.mode = d.want
	case d.available(d.want.Alternate()):
		d.mode = d.want.Alternate()
		d.r.logger.Warn("renderer unavailable, using alternate",
			"template", d.rc.Template.ID, "requested", d.want, "using", d.mode, "phase", d.r.cfg.Phase)
	default:
		d.err = errors.New(errors.ErrCodeNoRendererAvailable,
			"no renderer available for %s in phase %s", d.rc.Template.ID, d.r.cfg.Phase)
		return stateFailed
	}
	return stateRender
}

func (d *dispatch) render(ctx context.Context) state {
	hooks := observability.Render()
	hooks.OnRenderStart(ctx, d.rc.Template.ID, string(d.mode))
	start := time.Now()

	var data []byte
	var format card.Format
	var err error
	switch d.mode {
	case card.ModeVector:
		data, format, err = d.renderVector(ctx)
	case card.ModeScreenshot:
		data, format, err = d.renderScreenshot(ctx)
	}
	if err == nil && len(data) == 0 {
		err = errors.New(errors.ErrCodeRenderFailed, "%s render of %s produced no bytes", d.mode, d.rc.Template.ID)
	}
	if err != nil {
		d.lastErr = err
		d.r.logger.Warn("render attempt failed",
			"template", d.rc.Template.ID, "mode", d.mode, "duration", time.Since(start), "error", err)
		return stateFallback
	}

	d.out = output{data: data, format: format, mode: d.mode, fellBack: d.fellBack}
	return stateComplete
}

// renderVector converts the tree to SVG and runs the raster pipeline for
// bitmap formats.
func (d *dispatch) renderVector(ctx context.Context) ([]byte, card.Format, error) {
	if d.rc.Template.Kind == card.TreeHTML {
		return nil, "", errors.New(errors.ErrCodeUnsupported, "HTML templates have no vector rendition")
	}
	vec, err := d.r.cfg.Engines.Vector(ctx)
	if err != nil {
		return nil, "", err
	}
	rc := d.rc
	svg, err := withTimeout(ctx, d.r.cfg.VectorTimeout, "vector render", func(ctx context.Context) ([]byte, error) {
		return vec.RenderSVG(ctx, rc)
	})
	if err != nil {
		return nil, "", err
	}
	if len(svg) == 0 {
		return nil, "", errors.New(errors.ErrCodeRenderFailed, "vector engine returned no output")
	}
	return d.r.rasterize(ctx, svg, rc, d.format)
}

// renderScreenshot captures the tree in the browser and encodes the bitmap.
func (d *dispatch) renderScreenshot(ctx context.Context) ([]byte, card.Format, error) {
	if d.rc.Template.Kind == card.TreeDOT {
		return nil, "", errors.New(errors.ErrCodeUnsupported, "DOT templates cannot be screenshotted")
	}
	b, err := d.r.cfg.Engines.Browser(ctx)
	if err != nil {
		return nil, "", err
	}
	rc := d.rc
	html := browser.Document(rc)
	opts := rc.EngineOptions(card.EngineKeyBrowser)
	png, err := withTimeout(ctx, d.r.cfg.ScreenshotTimeout, "screenshot", func(ctx context.Context) ([]byte, error) {
		return b.Screenshot(ctx, html, rc.Width, rc.Height, opts)
	})
	if err != nil {
		return nil, "", err
	}
	if len(png) == 0 {
		return nil, "", errors.New(errors.ErrCodeRenderFailed, "browser returned no output")
	}
	return d.r.encode(ctx, png, rc, d.format)
}

// fallback makes the single retry: the alternate mode if it is available,
// otherwise the same mode at reduced fidelity. A reduced retry re-evaluates
// the template, so the tree names only the fallback font.
func (d *dispatch) fallback(ctx context.Context) state {
	if d.fellBack {
		d.err = errors.Wrap(errors.ErrCodeRenderFailed, d.lastErr,
			"render %s failed after fallback", d.rc.Template.ID)
		return stateFailed
	}
	d.fellBack = true

	from := d.mode
	if alt := d.mode.Alternate(); d.available(alt) {
		d.mode = alt
	} else {
		rc, err := d.r.reducedContext(ctx, d.job)
		if err != nil {
			d.err = err
			if errors.GetCode(err) == "" {
				d.err = errors.Wrap(errors.ErrCodeRenderFailed, err, "re-evaluate %s at reduced fidelity", d.rc.Template.ID)
			}
			return stateFailed
		}
		d.rc = rc
	}
	d.r.logger.Warn("falling back",
		"template", d.rc.Template.ID, "from", from, "to", d.mode, "reduced", from == d.mode, "cause", d.lastErr)
	observability.Render().OnFallback(ctx, d.rc.Template.ID, string(from), string(d.mode), d.lastErr)
	return stateRender
}

// phaseAllows is a shorthand for matrix lookups in the active phase.
func (r *Renderer) phaseAllows(e compat.Engine) bool {
	return r.cfg.Matrix.Available(r.cfg.Phase, e)
}
