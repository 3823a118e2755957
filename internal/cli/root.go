package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/buildinfo"
	"github.com/matzehuels/linkcard/pkg/config"
)

const defaultConfigPath = config.DefaultFile

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "linkcard renders social link card images",
		Long: `linkcard renders Open Graph link card images for web pages from SVG, HTML,
DOT or JavaScript templates. It serves cards over HTTP, prerenders them at
build time, and picks a render strategy the deployment target supports.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.configSet = cmd.Flags().Changed("config")
			registerHooks(c.Logger)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath, "config file")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.prerenderCommand())
	root.AddCommand(c.templatesCommand())
	root.AddCommand(c.compatCommand())
	root.AddCommand(c.fontsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file. A missing default file yields the
// built-in defaults; a missing explicit file is an error.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.configSet {
		return config.Load(c.configPath)
	}
	return config.LoadOrDefault(c.configPath)
}
