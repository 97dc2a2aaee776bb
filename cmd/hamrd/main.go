package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hamr-launcher/hamrd/cmd/hamrd/commands"
	"github.com/hamr-launcher/hamrd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "hamrd",
	Short: "hamrd - the hamr launcher daemon",
	Long: `hamrd is the long-lived background process behind the hamr launcher:
it owns the plugin registry, the fuzzy search index, and the session state
that every UI front-end and control client connects to over a single Unix
socket.

Available commands:
  run      - Start the daemon in the foreground
  version  - Show build and version information

Examples:
  hamrd run       # Start the daemon
  hamrd version   # Print version info`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs := cmd.Name() == "run"
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbosity count (-v, -vv, -vvv); parsed but not applied, the log level stays at info")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer func() { _ = logger.Cleanup() }()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
