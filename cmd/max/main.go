package main

import (
	"os"

	"github.com/ayushsreejith06/max/internal/client"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool

	maxClient client.MaxClient
)

func envOrDefault(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

var rootCmd = &cobra.Command{
	Use:   "max <command>",
	Short: "CLI for the MAX discussion engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		maxClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if maxClient != nil {
			maxClient.Close()
		}
	},
	SilenceUsage: true,
}

// noClient is used by commands that work against the store directly.
func noClient(cmd *cobra.Command, args []string) error { return nil }

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", envOrDefault("MAX_HTTP_URL", "http://localhost:8080"), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("MAX_AUTH_TOKEN"), "bearer token for the API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "market", Title: "Market:"},
		&cobra.Group{ID: "discussions", Title: "Discussions:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Market
	rootCmd.AddCommand(sectorCmd)
	rootCmd.AddCommand(agentCmd)

	// Discussions
	rootCmd.AddCommand(discussionCmd)
	rootCmd.AddCommand(executionsCmd)

	// Views
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
