package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spvgen/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage rebuild stamps",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all rebuild stamps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c *cache.Cache) error {
			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", c.Dir())

			return nil
		})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show rebuild stamp statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd, func(c *cache.Cache) error {
			count, size, err := c.Stats()
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cache:     %s\n", c.Dir())
			fmt.Fprintf(cmd.OutOrStdout(), "Stamps:    %d\n", count)
			fmt.Fprintf(cmd.OutOrStdout(), "Artifacts: %d bytes\n", size)

			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
}

// withCache opens the configured cache regardless of --no-cache
func withCache(cmd *cobra.Command, fn func(*cache.Cache) error) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cache == nil {
		c, err := cache.New(e.cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}

		e.cache = c
	}

	return fn(e.cache)
}
