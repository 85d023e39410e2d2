package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ctxpack",
	Short: "Assemble LLM prompts from your documents and conversations",
	Long: `ctxpack gathers the documents relevant to a question, packs them into a
token budget, compresses long conversation history and reports how much of
the model's context window a conversation uses. It runs as a CLI, an HTTP
and WebSocket server, or an MCP server for AI agents.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
