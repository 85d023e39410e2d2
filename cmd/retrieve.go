package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "List the documents most relevant to a query",
	Long: `Gathers candidate chunks from explicitly requested documents, a scope and
search, then prints them ranked by score.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	addRetrievalFlags(retrieveCmd)
	retrieveCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	who, req := retrievalFlags(cmd)
	chunks, err := a.svc.RetrieveContext(ctx, who, args[0], req)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(chunks)
	}
	if len(chunks) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(chunks))
	for i, c := range chunks {
		fmt.Printf("  %d. [%.0f%%] %s (%s)\n", i+1, c.Score*100, c.Title, c.Source)
		fmt.Printf("     id: %s\n", c.DocumentID)
		fmt.Printf("     %s\n\n", truncate(c.Snippet, 120))
	}
	return nil
}
