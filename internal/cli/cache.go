package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/linkcard/pkg/cache"
	"github.com/matzehuels/linkcard/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the image and font cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached image and font",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cc := cacheConfig(cfg)
			store, err := cache.Open(cmd.Context(), cc)
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				printInfo("The %s backend keeps nothing to clear", backendName(cc))
				return nil
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared the %s cache", backendName(cc))
			if fc, ok := store.(*cache.FileCache); ok {
				printDetail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cc := cacheConfig(cfg)
			if b := backendName(cc); b != cache.BackendFile {
				return fmt.Errorf("the %s backend has no directory", b)
			}
			dir, err := cacheDir(cc)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// cacheConfig returns the cache config with paths resolved.
func cacheConfig(cfg *config.Config) cache.Config {
	cc := cfg.Cache
	cc.Dir = cfg.Path(cc.Dir)
	return cc
}

func backendName(cc cache.Config) string {
	if cc.Backend == "" {
		return cache.BackendFile
	}
	return cc.Backend
}

// cacheDir returns the file cache directory: the configured one, or the
// per-user default (~/.cache/linkcard on Linux).
func cacheDir(cc cache.Config) (string, error) {
	if cc.Dir != "" {
		return cc.Dir, nil
	}
	return cache.DefaultDir()
}
