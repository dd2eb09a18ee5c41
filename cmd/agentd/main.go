// Agentd is a retrieval-augmented agent chat daemon.
//
// It serves an HTTP API for managing agents, ingesting documents into each
// agent's knowledge base, and running chat turns that ground model responses
// in retrieved document chunks.
//
// Configuration is loaded from ~/.config/agentd/config.yaml and environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	agentd serve
//
//	# Override the listen port
//	SERVER_PORT=9000 agentd serve
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	// configPath overrides the default config file location.
	configPath string

	// version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Retrieval-augmented agent chat daemon",
	Long: `agentd serves chat agents grounded in per-agent document knowledge bases.
Documents are extracted, chunked, and indexed into a vector store; chat turns
retrieve relevant chunks and feed them to the agent's configured model.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentd HTTP server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("agentd\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n",
			version, gitCommit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
