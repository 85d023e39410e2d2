package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
)

var promptCmd = &cobra.Command{
	Use:   "prompt [query]",
	Short: "Build a prompt for a query within a token budget",
	Long: `Retrieves context for the query, adds the conversation history (compressed
when it is long) and prints a prompt that fits the token budget.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrompt,
}

func init() {
	addRetrievalFlags(promptCmd)
	promptCmd.Flags().String("conversation", "", "conversation id whose history is included")
	promptCmd.Flags().Int("max-tokens", 0, "token budget (0 uses the configured budget)")
	promptCmd.Flags().Int("window", 0, "messages kept verbatim before summarizing (0 uses the configured window)")
	promptCmd.Flags().Bool("json", false, "output the prompt and citations as JSON")
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	query := args[0]
	who, req := retrievalFlags(cmd)
	convID, _ := cmd.Flags().GetString("conversation")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	window, _ := cmd.Flags().GetInt("window")

	conv, history, _, err := a.svc.History(ctx, convID, who, window)
	if err != nil {
		return err
	}
	chunks, err := a.svc.RetrieveContext(ctx, who, query, assembler.ForConversation(conv, req))
	if err != nil {
		return err
	}
	res, err := a.svc.BuildPrompt(ctx, who, query, chunks, history, maxTokens)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(res)
	}
	fmt.Println(res.PromptText)
	fmt.Fprintf(os.Stderr, "\n~%d tokens, %d documents", res.TokenEstimate, len(res.Citations))
	if res.Truncated {
		fmt.Fprint(os.Stderr, ", truncated")
	}
	fmt.Fprintln(os.Stderr)
	return nil
}
