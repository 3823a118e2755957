package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/compat"
	"github.com/matzehuels/linkcard/pkg/engine/builtin"
)

// compatCommand creates the compat command.
func (c *CLI) compatCommand() *cobra.Command {
	var (
		preset string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "compat",
		Short: "Print the resolved compatibility matrix",
		Long: `Print which engines are available in each execution phase for the configured
deployment preset, after local probes and config overrides.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if preset != "" {
				cfg.Preset = preset
			}
			opts := builtin.Options{Browser: cfg.Browser, Offline: cfg.Offline}
			res, err := compat.Resolve(cfg.Preset, builtin.Probes(opts), cfg.Compat)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"preset":   res.Preset,
					"matrix":   res.Matrix,
					"warnings": res.Warnings,
				})
			}

			printKeyValue("Preset", res.Preset)
			printNewline()
			fmt.Println(matrixTable(res.Matrix))
			for _, w := range res.Warnings {
				printWarning("%s", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "preset to resolve instead of the configured one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

// matrixTable renders phases as rows and engines as columns.
func matrixTable(m compat.Matrix) string {
	engines := compat.Engines()
	headers := []string{"Phase"}
	for _, e := range engines {
		headers = append(headers, string(e))
	}

	var rows [][]string
	for _, p := range compat.Phases() {
		row := []string{string(p)}
		for _, e := range engines {
			if m.Available(p, e) {
				row = append(row, iconSuccess)
			} else {
				row = append(row, iconError)
			}
		}
		rows = append(rows, row)
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case row >= len(rows) || col == 0:
				return cell.Foreground(colorWhite)
			case rows[row][col] == iconSuccess:
				return cell.Foreground(colorGreen).Align(lipgloss.Center)
			default:
				return cell.Foreground(colorRed).Align(lipgloss.Center)
			}
		}).
		Render()
}
