package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manages the local lookup cache.",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Removes every cached lookup.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Cache.Disabled {
			return fmt.Errorf("the lookup cache is disabled")
		}
		cache, err := openCache(cfg.Cache)
		if err != nil {
			return err
		}
		defer cache.Close()
		return cache.Purge(cmd.Context())
	},
}
