package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "mydia",
	Short: "Self-hosted media acquisition server",
	Long: `mydia - self-hosted media acquisition

Watches your library for missing movies and episodes, searches
configured indexers, ranks releases by quality profile and hands
the winners to a download client. Completed downloads are imported
into the library automatically.

Run 'mydia serve' to start the server.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("mydia {{.Version}}\n")
}
