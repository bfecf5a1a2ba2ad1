// Package cmd provides the command-line interface for the release service.
//
// This package implements a cobra-based CLI with commands for:
//   - serve: Start the release service API server
//   - version: Display version and build information
//
// The CLI supports configuration via:
//   - Command-line flags
//   - Configuration files (YAML format)
//   - Environment variables
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile holds the path to the configuration file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "releaseservice",
		Short: "Release Service - staging to canonical RDF synchronization",
		Long: `Release Service moves staging graphs into canonical form for publication.

For each release task the service:
  - Remaps role-holder references to their canonical records, based on the
    meeting date found in the staging graph
  - Replaces foreign URIs with canonical ones, minting owl:sameAs mappings
    where none exist yet
  - Tracks task state as status triples in the store, so several instances
    can share one queue

Use "releaseservice serve" to start the API server.`,
	}
)

// Execute executes the root command and returns any error that occurs.
// This is the main entry point for the CLI application.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.releaseservice.yaml)")
}

// initConfig reads in config file and environment variables if set.
// This function is called during cobra initialization before command execution.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".releaseservice")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
