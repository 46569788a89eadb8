package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ghosttrack/ghosttrack/internal/api"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// Global flags
	configPath string
	dataDir    string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "ghosttrack",
	Short: "GhostTrack - security-first web analytics",
	Long: `GhostTrack is a self-hosted analytics API with built-in threat scoring.

It provides:
  - Pageview and event tracking
  - Bot detection and threat scoring on every event
  - Traffic source and visitor session breakdowns
  - Threat alert and suspicious session feeds

Get started:
  ghosttrack init     # Write a config file and set the admin password
  ghosttrack serve    # Start the server`,
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: run serve command
		serveCmd.Run(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ghosttrack %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

func init() {
	// Set version in API package for the service banner
	api.Version = Version

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default config.json)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "Data directory for the event database")
	rootCmd.PersistentFlags().StringVarP(&listenAddr, "listen", "l", "", "Address to listen on")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
