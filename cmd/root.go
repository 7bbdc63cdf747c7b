// Package cmd wires the parley CLI: the gateway server, the terminal
// chat client, and the management commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/config"
)

var (
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Tool-calling chat assistant with a browser UI",
	Long: `Parley runs a chat assistant that answers with the help of tools:
web search, document search, weather, math, time, and currency. The
gateway serves a browser UI, a WebSocket protocol for clients, and an
OpenAI-compatible completions endpoint.

Running parley with no subcommand starts the gateway.

Examples:
  parley init                      # interactive setup
  parley                           # start the gateway
  parley chat                      # chat from the terminal
  parley chat --exec "2*(3+4)?"    # one-shot message
  parley tools list                # show registered tools`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.parley/config.json5)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(doctorCmd())
}

// resolveConfigPath honors the global --config flag.
func resolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.DefaultConfigPath()
}
