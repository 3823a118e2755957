package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/card"
	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/config"
	"github.com/matzehuels/linkcard/pkg/fonts"
)

// fontsCommand creates the fonts command.
func (c *CLI) fontsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Manage card fonts",
	}

	cmd.AddCommand(c.fontsPrefetchCommand())
	cmd.AddCommand(c.fontsListCommand())

	return cmd
}

// fontsPrefetchCommand creates the "fonts prefetch" subcommand.
func (c *CLI) fontsPrefetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch",
		Short: "Download every remote font the config references into the cache",
		Long: `Download every remote font the config references into the cache.

Run this at build time so that runtime and prerender phases without network
access still find their fonts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			a, err := c.newApp(ctx, cfg, compat.PhaseBuild, false)
			if err != nil {
				return err
			}
			defer a.Close()

			descs, err := configuredFonts(cfg)
			if err != nil {
				return err
			}
			descs = fonts.Normalize(descs, a.res.Matrix, compat.PhaseBuild, c.Logger)
			list := fonts.PrefetchList(descs)
			if len(list) == 0 {
				printInfo("No remote fonts to prefetch")
				return nil
			}

			prog := newProgress(c.Logger)
			failed := 0
			for _, d := range list {
				spinner := newSpinnerWithContext(ctx, "Fetching "+d.Key())
				spinner.Start()
				face, err := a.fonts.Load(ctx, d)
				if err != nil {
					failed++
					spinner.StopWithError(fmt.Sprintf("%s: %v", d.Key(), err))
					continue
				}
				spinner.StopWithSuccess(fmt.Sprintf("%s %s", d.Key(), StyleDim.Render(fmt.Sprintf("(%s, %d bytes)", face.Format, len(face.Data)))))
			}
			prog.done(fmt.Sprintf("Prefetched %d of %d fonts", len(list)-failed, len(list)))
			if failed > 0 {
				return fmt.Errorf("%d fonts failed", failed)
			}
			return nil
		},
	}
}

// fontsListCommand creates the "fonts list" subcommand.
func (c *CLI) fontsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured and bundled fonts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			descs, err := configuredFonts(cfg)
			if err != nil {
				return err
			}
			fmt.Println(StyleTitle.Render("Configured"))
			for _, d := range descs {
				printKeyValue(d.Key(), d.Source().String())
			}
			printNewline()
			fmt.Println(StyleTitle.Render("Bundled"))
			for _, name := range fonts.EmbeddedNames() {
				printDetail("%s", name)
			}
			return nil
		},
	}
}

// configuredFonts collects the font descriptors of the defaults and every
// page, in config order.
func configuredFonts(cfg *config.Config) ([]card.FontDescriptor, error) {
	var out []card.FontDescriptor
	routes := append([]string{"/"}, cfg.PageRoutes()...)
	for _, route := range routes {
		opts, err := cfg.Options(route)
		if err != nil {
			return nil, err
		}
		out = append(out, opts.Fonts...)
	}
	return out, nil
}
