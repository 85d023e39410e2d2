package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/ctxpack/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing context
retrieval, prompt building, history compression and window statistics as
tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(context.Background(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		who, _ := cmd.Flags().GetString("requester")
		documents, _ := a.store.CountDocuments(context.Background())
		fmt.Fprintf(os.Stderr, "ctxpack MCP server started on stdio (documents=%d)\n", documents)

		return mcpserver.NewServer(a.svc, who).Serve()
	},
}

func init() {
	mcpCmd.Flags().String("requester", defaultRequester, "identity used when a tool call names none")
	rootCmd.AddCommand(mcpCmd)
}
