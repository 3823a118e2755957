package render

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine"
	"github.com/matzehuels/linkcard/pkg/errors"
	"github.com/matzehuels/linkcard/pkg/fonts"
	"github.com/matzehuels/linkcard/pkg/observability"
	"github.com/matzehuels/linkcard/pkg/template"
)

// Config holds a renderer's collaborators.
type Config struct {
	Engines   *engine.Registry
	Templates *template.Registry
	Fonts     *fonts.Resolver
	// Matrix is the resolved compatibility matrix; Phase selects its row.
	Matrix compat.Matrix
	Phase  compat.Phase
	Logger *log.Logger

	// VectorTimeout bounds vector conversion and rasterization.
	VectorTimeout time.Duration
	// ScreenshotTimeout bounds a browser screenshot.
	ScreenshotTimeout time.Duration
	// ReloadTemplates re-reads templates before each request, so edits are
	// picked up without a restart (dev phase).
	ReloadTemplates bool
}

// Renderer renders card images. It is safe for concurrent use.
type Renderer struct {
	cfg    Config
	logger *log.Logger
}

// New creates a renderer. Zero timeouts get the defaults.
func New(cfg Config) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = DefaultVectorTimeout
	}
	if cfg.ScreenshotTimeout <= 0 {
		cfg.ScreenshotTimeout = DefaultScreenshotTimeout
	}
	if cfg.Fonts == nil {
		cfg.Fonts = fonts.NewResolver(nil, cfg.Logger)
	}
	return &Renderer{cfg: cfg, logger: cfg.Logger}
}

// Matrix returns the compatibility matrix the renderer enforces.
func (r *Renderer) Matrix() compat.Matrix { return r.cfg.Matrix }

// Phase returns the execution phase the renderer runs in.
func (r *Renderer) Phase() compat.Phase { return r.cfg.Phase }

// Templates returns the template registry.
func (r *Renderer) Templates() *template.Registry { return r.cfg.Templates }

// Job is a validated request bound to a template. It carries everything
// that determines the output bytes.
type Job struct {
	Route    string
	Options  card.RenderOptions
	Props    map[string]any
	Template *template.Template
}

// Prepare validates req and resolves its template without invoking any
// engine. Dimension errors are reported before template errors.
func (r *Renderer) Prepare(req card.Request) (*Job, error) {
	opts := req.Options.Clone()
	opts.SetDefaults()
	if err := opts.ValidateDimensions(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if r.cfg.ReloadTemplates {
		if err := r.cfg.Templates.Reload(); err != nil {
			r.logger.Warn("template reload failed, keeping previous set", "error", err)
		}
	}
	tmpl, err := r.cfg.Templates.Get(opts.Template)
	if err != nil {
		return nil, err
	}
	return &Job{Route: req.Route, Options: opts, Props: req.Props, Template: tmpl}, nil
}

// Render prepares and executes req.
func (r *Renderer) Render(ctx context.Context, req card.Request) (card.Image, error) {
	job, err := r.Prepare(req)
	if err != nil {
		return card.Image{}, err
	}
	return r.Execute(ctx, job)
}

// Execute renders a prepared job.
func (r *Renderer) Execute(ctx context.Context, job *Job) (card.Image, error) {
	start := time.Now()
	hooks := observability.Render()

	rc, err := r.buildContext(ctx, job)
	if err != nil {
		hooks.OnRenderComplete(ctx, job.Template.ID, "", time.Since(start), err)
		return card.Image{}, err
	}

	d := newDispatch(r, job, rc)
	out, err := d.run(ctx)
	hooks.OnRenderComplete(ctx, job.Template.ID, string(d.mode), time.Since(start), err)
	if err != nil {
		return card.Image{}, err
	}

	img := card.Image{
		Data:      out.data,
		Format:    out.format,
		Requested: job.Options.Format,
		Mode:      out.mode,
		FellBack:  out.fellBack,
	}
	if img.Downgraded() {
		hooks.OnDowngrade(ctx, string(img.Requested), string(img.Format))
	}

	r.logger.Debug("rendered card",
		"template", job.Template.ID,
		"mode", img.Mode,
		"format", img.Format,
		"fallback", img.FellBack,
		"bytes", len(img.Data),
		"duration", time.Since(start))
	return img, nil
}

// buildContext resolves fonts and evaluates the template.
func (r *Renderer) buildContext(ctx context.Context, job *Job) (card.RenderContext, error) {
	descs := fonts.Normalize(job.Options.Fonts, r.cfg.Matrix, r.cfg.Phase, r.logger)
	faces, err := r.cfg.Fonts.LoadAll(ctx, descs)
	if err != nil {
		return card.RenderContext{}, err
	}
	return r.evaluate(ctx, job, job.Options.Emoji, descs, faces)
}

// reducedContext evaluates the template again with only the fallback font
// and emoji disabled.
func (r *Renderer) reducedContext(ctx context.Context, job *Job) (card.RenderContext, error) {
	face := fonts.FallbackFace()
	return r.evaluate(ctx, job, card.EmojiNone, []card.FontDescriptor{face.Descriptor}, []card.FontFace{face})
}

func (r *Renderer) evaluate(ctx context.Context, job *Job, emoji card.Emoji, descs []card.FontDescriptor, faces []card.FontFace) (card.RenderContext, error) {
	opts := job.Options
	data := template.NewData(job.Route, job.Props, opts.Width, opts.Height, emoji, descs)
	var tree string
	var err error
	if job.Template.IsScript() {
		tree, err = r.evalScript(ctx, job.Template, data)
	} else {
		tree, err = job.Template.Execute(data)
	}
	if err != nil {
		return card.RenderContext{}, err
	}

	return card.RenderContext{
		Template: job.Template.Ref(),
		Tree:     tree,
		Fonts:    faces,
		Width:    opts.Width,
		Height:   opts.Height,
		Emoji:    emoji,
		Engines:  opts.Engines,
	}, nil
}

func (r *Renderer) evalScript(ctx context.Context, t *template.Template, data template.Data) (string, error) {
	js, err := r.cfg.Engines.Script(ctx)
	if err != nil {
		return "", err
	}
	tree, err := withTimeout(ctx, r.cfg.VectorTimeout, "template "+t.ID, func(ctx context.Context) (string, error) {
		return js.Eval(ctx, t.ID+".js", t.Source, data.Props, data.Card)
	})
	if err != nil {
		if errors.GetCode(err) != "" {
			return "", err
		}
		return "", errors.Wrap(errors.ErrCodeRenderFailed, err, "evaluate template %s", t.ID)
	}
	return tree, nil
}
