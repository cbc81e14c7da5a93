package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Downloads the model artifact into the local cache",
	Long:  `Downloads the configured model artifact into the cache directory unless it is already there`,
	Run: func(cmd *cobra.Command, args []string) {
		cache, _, err := newCache(context.Background())
		cobra.CheckErr(err)
		localPath, err := cache.GetOrFetch(context.Background(), cfg.ModelPath())
		cobra.CheckErr(err)
		fmt.Fprintln(cmd.OutOrStdout(), localPath)
	},
}
