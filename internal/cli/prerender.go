package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/config"
	"github.com/matzehuels/linkcard/pkg/pipeline"
)

// prerenderResult is the outcome for one page.
type prerenderResult struct {
	route string
	path  string
	res   pipeline.Result
	err   error
}

// prerenderCommand creates the prerender command.
func (c *CLI) prerenderCommand() *cobra.Command {
	var (
		outDir      string
		concurrency int
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "prerender [route...]",
		Short: "Render every configured page into an output directory",
		Long: `Render every configured page into an output directory.

Cards are written as <out>/<route>.<ext>, with "/" written as index.<ext>.
The extension is the produced format, which can differ from the requested
one when the prerender phase has no bitmap encoder. Pass routes to render a
subset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Path(cfg.OutDir)
			}

			routes := args
			if len(routes) == 0 {
				routes = cfg.PageRoutes()
			}
			if len(routes) == 0 {
				printInfo("No pages configured")
				return nil
			}

			a, err := c.newApp(ctx, cfg, compat.PhasePrerender, noCache)
			if err != nil {
				return err
			}
			defer a.Close()

			prog := newProgress(c.Logger)
			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Prerendering %d pages", len(routes)))
			spinner.Start()
			results := prerender(ctx, cfg, a.runner, outDir, routes, concurrency, func(done int) {
				spinner.SetMessage(fmt.Sprintf("Prerendering %d/%d", done, len(routes)))
			})
			spinner.Stop()

			failed := 0
			for _, r := range results {
				if r.err != nil {
					failed++
					printError("%s: %v", r.route, r.err)
					continue
				}
				printSuccess("%s", StyleHighlight.Render(r.route))
				printFile(r.path)
				printRenderStats(r.res.Format, r.res.Mode, len(r.res.Data), r.res.FellBack, r.res.Cached)
			}
			prog.done(fmt.Sprintf("Prerendered %d of %d pages", len(results)-failed, len(results)))
			if failed > 0 {
				return fmt.Errorf("%d pages failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: out_dir from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "pages rendered in parallel")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the cache")

	return cmd
}

// prerender renders routes with bounded concurrency and returns one result
// per route, sorted by route. Page failures do not stop the others. If
// onProgress is set it is called with the number of finished pages.
func prerender(ctx context.Context, cfg *config.Config, runner *pipeline.Runner, outDir string, routes []string, concurrency int, onProgress func(done int)) []prerenderResult {
	if concurrency < 1 {
		concurrency = 1
	}
	var (
		mu      sync.Mutex
		results []prerenderResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, route := range routes {
		g.Go(func() error {
			r := prerenderOne(ctx, cfg, runner, outDir, route)
			mu.Lock()
			results = append(results, r)
			n := len(results)
			mu.Unlock()
			if onProgress != nil {
				onProgress(n)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].route < results[j].route })
	return results
}

func prerenderOne(ctx context.Context, cfg *config.Config, runner *pipeline.Runner, outDir, route string) prerenderResult {
	out := prerenderResult{route: route}
	req, err := cfg.Request(route, nil)
	if err != nil {
		out.err = err
		return out
	}
	out.route = req.Route

	res, err := runner.Execute(ctx, req)
	if err != nil {
		out.err = err
		return out
	}
	out.res = res
	out.path = filepath.Join(outDir, routeFile(req.Route, res.Format))
	if err := os.MkdirAll(filepath.Dir(out.path), 0o755); err != nil {
		out.err = err
		return out
	}
	if err := os.WriteFile(out.path, res.Data, 0o644); err != nil {
		out.err = fmt.Errorf("write %s: %w", out.path, err)
	}
	return out
}
