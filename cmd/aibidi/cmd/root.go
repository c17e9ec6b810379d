package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var autoShutdown bool

var rootCmd = &cobra.Command{
	Use:   "aibidi",
	Short: "aibidi - browser terminal with right-to-left cursor keys",
	Long: `aibidi serves a browser terminal backed by a local shell. Each browser
connection gets its own shell on a pseudo-terminal. Pressing F9 in the
terminal flips the horizontal arrow keys for right-to-left text.

Run without a subcommand to start the server. Settings come from AIBIDI_*
environment variables, e.g. AIBIDI_PORT, AIBIDI_SHELL and AIBIDI_ACCESS_KEY.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runServer,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolVar(&autoShutdown, "auto-shutdown", false, "exit once the last terminal disconnects")
}

// client subcommand flags
var (
	baseURL   string
	accessKey string
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&baseURL, "url", getEnvOrDefault("AIBIDI_URL", "http://localhost:8200"), "aibidi server base URL")
	cmd.Flags().StringVar(&accessKey, "key", os.Getenv("AIBIDI_ACCESS_KEY"), "access key, if the server requires one")
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
