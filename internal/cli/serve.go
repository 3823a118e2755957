package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		dev     bool
		debug   bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve card images over HTTP",
		Long: `Serve card images over HTTP.

Images are served at /image/<route>[.ext], fonts at /font/<name>/<weight>.<ext>.
With --dev the server runs in the dev phase and re-reads templates on every
request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if debug {
				cfg.Debug = true
			}

			phase := compat.PhaseRuntime
			if dev {
				phase = compat.PhaseDev
			}

			ctx := cmd.Context()
			a, err := c.newApp(ctx, cfg, phase, noCache)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(server.Options{
				Config:     cfg,
				Runner:     a.runner,
				Fonts:      a.fonts,
				Resolution: a.res,
				Phase:      phase,
				Warnings:   a.warnings,
				Logger:     c.Logger,
			})
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&dev, "dev", false, "run in the dev phase with template reloading")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable /debug.json")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the image and font cache")

	return cmd
}
