package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/template"
)

// templatesCommand creates the templates command.
func (c *CLI) templatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			sources := []template.Source{template.BuiltinSource()}
			if cfg.TemplatesDir != "" {
				sources = append(sources, template.DirSource(cfg.Path(cfg.TemplatesDir)))
			}
			reg, err := template.NewRegistry(c.Logger, sources...)
			if err != nil {
				return err
			}
			for _, t := range reg.List() {
				printKeyValue(t.ID, string(t.Kind)+"  "+StyleDim.Render(t.Origin))
			}
			return nil
		},
	}
}
