package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var baseURL string

var rootCmd = &cobra.Command{
	Use:   "tbx",
	Short: "trainbox CLI - run and monitor training scripts from the command line",
	Long: `trainbox CLI (tbx) talks to a trainbox server.

It executes training scripts remotely with live streamed output, cancels them,
and inspects active sessions, run history and trained model files.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url",
		getEnvOrDefault("TRAINBOX_URL", "http://localhost:8080"), "trainbox API base URL")
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
