// Package main provides the lead_engine command: the HTTP API server and the CLI
// tools around it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	devLogs    bool
)

var rootCmd = &cobra.Command{
	Use:   "lead_engine",
	Short: "Lead generation engine",
	Long: `Lead engine searches job postings, enriches the hiring companies, finds points of contact
and drafts outreach emails. Results are persisted as sessions of leads and can be streamed
from the HTTP API or run locally from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file (environment variables override it)")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev-logs", false, "Human-readable console logs instead of JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
