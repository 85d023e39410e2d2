package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from your documents with an LLM",
	Long: `Retrieves context for the question, builds a budgeted prompt and asks the
configured provider. With --conversation the question and answer are added
to that conversation and its history is part of the prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	addRetrievalFlags(askCmd)
	askCmd.Flags().String("conversation", "", "conversation id to continue")
	askCmd.Flags().Int("max-tokens", 0, "token budget (0 uses the configured budget)")
	askCmd.Flags().Int("window", 0, "messages kept verbatim before summarizing")
	askCmd.Flags().String("provider", "", "provider to use for this question")
	askCmd.Flags().Bool("json", false, "output the answer and citations as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	who, req := retrievalFlags(cmd)
	convID, _ := cmd.Flags().GetString("conversation")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	window, _ := cmd.Flags().GetInt("window")
	provider, _ := cmd.Flags().GetString("provider")

	res, err := a.svc.Ask(ctx, assembler.AskRequest{
		Requester:      who,
		Query:          args[0],
		ConversationID: convID,
		Retrieval:      req,
		MaxTokens:      maxTokens,
		Window:         window,
		Provider:       provider,
	})
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(res)
	}

	fmt.Println(res.Answer)
	if len(res.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range res.Citations {
			fmt.Printf("  - %s (%s)\n", c.Title, c.DocumentID)
		}
	}
	fmt.Fprintf(os.Stderr, "\n%s/%s, %d in / %d out tokens, $%.4f\n",
		res.Provider, res.Model, res.InputTokens, res.OutputTokens, res.CostUSD)
	return nil
}
