package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/matzehuels/linkcard/pkg/buildinfo"
	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/config"
	"github.com/matzehuels/linkcard/pkg/engine"
	"github.com/matzehuels/linkcard/pkg/engine/builtin"
	"github.com/matzehuels/linkcard/pkg/fonts"
	"github.com/matzehuels/linkcard/pkg/pipeline"
	"github.com/matzehuels/linkcard/pkg/render"
	"github.com/matzehuels/linkcard/pkg/template"
)

// Cache roots under the storage backend.
const (
	imagesRoot = "images"
	fontsRoot  = "fonts"
)

// app is the wired render stack for one command invocation.
type app struct {
	cfg       *config.Config
	phase     compat.Phase
	res       compat.Resolution
	warnings  []string
	store     cache.Cache
	engines   *engine.Registry
	templates *template.Registry
	fonts     *fonts.Resolver
	renderer  *render.Renderer
	runner    *pipeline.Runner
}

// newApp resolves the compatibility matrix for phase and wires storage,
// engines, templates and fonts. Callers must Close the app.
func (c *CLI) newApp(ctx context.Context, cfg *config.Config, phase compat.Phase, noCache bool) (*app, error) {
	engineOpts := builtin.Options{Browser: cfg.Browser, Offline: cfg.Offline}
	res, err := compat.Resolve(cfg.Preset, builtin.Probes(engineOpts), cfg.Compat)
	if err != nil {
		return nil, err
	}
	defaultWarnings, err := reconcileDefaults(cfg, res.Matrix, phase)
	if err != nil {
		return nil, err
	}
	warnings := slices.Concat(res.Warnings, defaultWarnings, reconcileWarnings(cfg, res.Matrix, phase))
	for _, w := range warnings {
		c.Logger.Warn(w)
	}

	store := cache.NewNullCache()
	if !noCache {
		cc := cfg.Cache
		cc.Dir = cfg.Path(cc.Dir)
		if store, err = cache.Open(ctx, cc); err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	sources := []template.Source{template.BuiltinSource()}
	if cfg.TemplatesDir != "" {
		sources = append(sources, template.DirSource(cfg.Path(cfg.TemplatesDir)))
	}
	tmpls, err := template.NewRegistry(c.Logger, sources...)
	if err != nil {
		store.Close()
		return nil, err
	}

	fr := fonts.NewResolver(cache.Namespaced(store, fontsRoot), c.Logger)
	fr.CSSURL = cfg.FontCSSURL
	fr.BaseDir = cfg.Path(cfg.FontsDir)

	engines := engine.NewRegistry(builtin.Factories(engineOpts), c.Logger)
	if cfg.Timeouts.EngineInit > 0 {
		engines.SetInitTimeout(cfg.Timeouts.EngineInit)
	}

	renderer := render.New(render.Config{
		Engines:           engines,
		Templates:         tmpls,
		Fonts:             fr,
		Matrix:            res.Matrix,
		Phase:             phase,
		Logger:            c.Logger,
		VectorTimeout:     cfg.Timeouts.Vector,
		ScreenshotTimeout: cfg.Timeouts.Screenshot,
		ReloadTemplates:   phase == compat.PhaseDev,
	})

	ns := buildinfo.Namespace()
	runner := pipeline.NewRunner(cache.Namespaced(store, imagesRoot, ns), renderer, ns, c.Logger)

	c.Logger.Debug("app ready", "preset", res.Preset, "phase", phase, "namespace", ns, "cache", runner.Enabled())
	return &app{
		cfg:       cfg,
		phase:     phase,
		res:       res,
		warnings:  warnings,
		store:     store,
		engines:   engines,
		templates: tmpls,
		fonts:     fr,
		renderer:  renderer,
		runner:    runner,
	}, nil
}

// Close releases engines and storage.
func (a *app) Close() error {
	engErr := a.engines.Close()
	if err := a.store.Close(); err != nil {
		return err
	}
	return engErr
}

// reconcileDefaults rewrites the renderer and format of cfg's [defaults]
// layer to values the matrix supports in phase.
func reconcileDefaults(cfg *config.Config, m compat.Matrix, phase compat.Phase) ([]string, error) {
	base, err := config.MergeOptions(card.DefaultOptions(), cfg.Defaults)
	if err != nil {
		return nil, err
	}
	opts, warnings := compat.Reconcile(m, phase, base)

	defaults := maps.Clone(cfg.Defaults)
	if defaults == nil {
		defaults = make(map[string]any, 2)
	}
	if opts.Renderer != base.Renderer {
		defaults["renderer"] = string(opts.Renderer)
	}
	if opts.Format != base.Format {
		defaults["format"] = string(opts.Format)
	}
	cfg.Defaults = defaults

	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, "defaults: "+w)
	}
	return out, nil
}

// reconcileWarnings reports route and page options the matrix cannot honor
// in phase. Those options are explicit, so they are kept as requested and
// the dispatcher falls back or downgrades at render time.
func reconcileWarnings(cfg *config.Config, m compat.Matrix, phase compat.Phase) []string {
	var out []string
	routes := append([]string{"/"}, cfg.PageRoutes()...)
	for _, route := range routes {
		opts, err := cfg.Options(route)
		if err != nil {
			continue
		}
		_, warnings := compat.Reconcile(m, phase, opts)
		for _, w := range warnings {
			out = append(out, route+": "+w)
		}
	}
	return out
}

// parsePhase validates a --phase flag value.
func parsePhase(s string) (compat.Phase, error) {
	p := compat.Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid phase %q (must be one of: build, dev, prerender, runtime)", s)
	}
	return p, nil
}
