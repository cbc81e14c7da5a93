package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspects model artifacts in the configured location",
}

// modelPrefix is the directory part of an object path, with a trailing slash
func modelPrefix(objectPath string) string {
	return objectPath[:strings.LastIndex(objectPath, "/")+1]
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists artifacts next to the configured model",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		_, store, err := newCache(ctx)
		cobra.CheckErr(err)
		objectPaths, err := store.ListObjects(ctx, modelPrefix(cfg.ModelPath()))
		cobra.CheckErr(err)
		current := cfg.ModelPath()
		for _, objectPath := range objectPaths {
			marker := " "
			if objectPath == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, objectPath)
		}
	},
}
