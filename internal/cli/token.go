package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show dashboard URL with access token",
	Long: `Show the dashboard URL with your access token.

Use this when you've scrolled past the startup message or need to
share the dashboard link. IGT_SERVER_URL overrides the base URL.

Example:
  igt token`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(getTokenFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: igt serve")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: igt serve")
	}

	serverURL := getEnvOrDefault("IGT_SERVER_URL", fmt.Sprintf("http://localhost:%d", getEnvIntOrDefault("IGT_PORT", 8080)))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Summary:  %s/dashboard/api/summary?token=%s\n", serverURL, token)
	fmt.Fprintf(out, "Variants: %s/dashboard/api/variants?token=%s\n", serverURL, token)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tip: Bookmark this URL or run 'igt token' anytime.")
	return nil
}
