/*
Copyright © 2022 Jay Chia jay@eventualcomputing.com

*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Eventual-Inc/modelfn/pkg/artifactcache"
	"github.com/Eventual-Inc/modelfn/pkg/config"
	"github.com/Eventual-Inc/modelfn/pkg/logging"
	"github.com/Eventual-Inc/modelfn/pkg/objectstorage"
)

var (
	cfg        config.Config
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modelfn",
	Short: "Model Functions as a Service",
	Long: `modelfn runs the model inference function outside of Lambda.

Use it to invoke the model on a local payload, to populate or purge the local artifact cache,
and to inspect which model artifacts are available in the configured bucket.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", ".env", "dotenv file with MODELFN_* settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func initConfig() {
	loaded, err := config.Load(configFile)
	if err != nil {
		cobra.CheckErr(err)
	}
	cfg = loaded
	level := cfg.LogLevel
	if verbose {
		level = logrus.DebugLevel.String()
	}
	cobra.CheckErr(logging.Setup(level, "text"))
}

func newCache(ctx context.Context) (*artifactcache.Cache, objectstorage.ObjectStore, error) {
	store, err := objectstorage.StoreFactory(ctx, cfg.Location())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create object store: %w", err)
	}
	return artifactcache.New(cfg.CacheDir, store), store, nil
}
