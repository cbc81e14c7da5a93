package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var purgeYes bool

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cachePurgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "purge without asking for confirmation")
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects and manages the local model cache",
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Prints where the model artifact is cached",
	Run: func(cmd *cobra.Command, args []string) {
		cache, _, err := newCache(context.Background())
		cobra.CheckErr(err)
		fmt.Fprintln(cmd.OutOrStdout(), cache.Path(cfg.ModelPath()))
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Removes every cached artifact",
	Run: func(cmd *cobra.Command, args []string) {
		cache, _, err := newCache(context.Background())
		cobra.CheckErr(err)
		if !purgeYes {
			ok, err := BoolPrompt(fmt.Sprintf("Remove all files in %s", cache.Dir()))
			cobra.CheckErr(err)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return
			}
		}
		removed, err := cache.Purge()
		cobra.CheckErr(err)
		for _, name := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
		}
	},
}
