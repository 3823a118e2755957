package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
)

// renderOpts holds the command-line flags for the render command.
// Unset flags leave the configured options for the route untouched.
type renderOpts struct {
	output   string            // output file path
	template string            // template identifier
	format   string            // output format
	renderer string            // vector or screenshot
	width    int               // card width in pixels
	height   int               // card height in pixels
	props    map[string]string // extra template props
	phase    string            // execution phase
	noCache  bool              // bypass the cache
	refresh  bool              // drop the cached entry first
}

// renderCommand creates the render command for a single card.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{phase: string(compat.PhaseDev)}

	cmd := &cobra.Command{
		Use:   "render [route]",
		Short: "Render one card image to a file",
		Long: `Render one card image to a file.

The route selects the page options and props from the config file. Without a
route and without --template, an interactive template picker is shown and
the card is rendered for "/".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <route>.<ext>)")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "template identifier")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: png, jpeg, gif, tiff, bmp, svg")
	cmd.Flags().StringVar(&opts.renderer, "renderer", "", "render strategy: vector, screenshot")
	cmd.Flags().IntVar(&opts.width, "width", card.DefaultWidth, "card width")
	cmd.Flags().IntVar(&opts.height, "height", card.DefaultHeight, "card height")
	cmd.Flags().StringToStringVarP(&opts.props, "prop", "p", nil, "template prop key=value (repeatable)")
	cmd.Flags().StringVar(&opts.phase, "phase", opts.phase, "execution phase: build, dev, prerender, runtime")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even if cached")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, args []string, opts *renderOpts) error {
	ctx := cmd.Context()
	phase, err := parsePhase(opts.phase)
	if err != nil {
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	a, err := c.newApp(ctx, cfg, phase, opts.noCache)
	if err != nil {
		return err
	}
	defer a.Close()

	route := "/"
	if len(args) == 1 {
		route = args[0]
	} else if opts.template == "" {
		id, err := pickTemplate(a.templates.List())
		if err != nil {
			return err
		}
		if id == "" {
			printInfo("No template selected")
			return nil
		}
		opts.template = id
	}

	props := make(map[string]any, len(opts.props))
	for k, v := range opts.props {
		props[k] = v
	}
	req, err := cfg.Request(route, props)
	if err != nil {
		return err
	}
	if req.Options, err = applyRenderFlags(cmd, req.Options, opts); err != nil {
		return err
	}

	if opts.refresh {
		if err := a.runner.Invalidate(ctx, req); err != nil {
			c.Logger.Warn("could not drop cached entry", "error", err)
		}
	}

	spinner := newSpinnerWithContext(ctx, "Rendering "+req.Route)
	spinner.Start()
	res, err := a.runner.Execute(ctx, req)
	spinner.Stop()
	if err != nil {
		return err
	}

	path := opts.output
	if path == "" {
		path = routeSlug(req.Route) + "." + res.Format.Extension()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	printSuccess("Rendered %s", StyleHighlight.Render(req.Route))
	printFile(path)
	printRenderStats(res.Format, res.Mode, len(res.Data), res.FellBack, res.Cached)
	if res.Downgraded() {
		printWarning("Requested %s, produced %s (no bitmap encoder in the %s phase)", res.Requested, res.Format, phase)
	}
	return nil
}

// applyRenderFlags overrides options with the flags the user set.
func applyRenderFlags(cmd *cobra.Command, o card.RenderOptions, opts *renderOpts) (card.RenderOptions, error) {
	out := o.Clone()
	flags := cmd.Flags()
	if opts.template != "" {
		out.Template = opts.template
	}
	if opts.format != "" {
		f, err := card.ParseFormat(opts.format)
		if err != nil {
			return card.RenderOptions{}, err
		}
		out.Format = f
	}
	if opts.renderer != "" {
		out.Renderer = card.Mode(opts.renderer)
	}
	if flags.Changed("width") {
		out.Width = opts.width
	}
	if flags.Changed("height") {
		out.Height = opts.height
	}
	return out, nil
}

// routeSlug turns a route into a flat file name: "/" is "index" and
// "/blog/hello" is "blog-hello".
func routeSlug(route string) string {
	s := strings.Trim(route, "/")
	if s == "" {
		return "index"
	}
	return strings.ReplaceAll(s, "/", "-")
}

// routeFile maps a route to a path below an output directory: "/" is
// "index.<ext>" and "/blog/hello" is "blog/hello.<ext>".
func routeFile(route string, f card.Format) string {
	s := strings.Trim(route, "/")
	if s == "" {
		s = "index"
	}
	return filepath.FromSlash(s) + "." + f.Extension()
}
