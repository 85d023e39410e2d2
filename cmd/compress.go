package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var compressCmd = &cobra.Command{
	Use:   "compress [conversation-id]",
	Short: "Summarize a conversation's older messages",
	Long: `Replaces all but the most recent messages of a conversation with an
LLM-written summary when the conversation is longer than the window.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().Int("window", 0, "messages kept verbatim (0 uses the configured window)")
	compressCmd.Flags().String("requester", defaultRequester, "identity whose provider settings are used")
	compressCmd.Flags().Bool("json", false, "output the summary as JSON")
	rootCmd.AddCommand(compressCmd)
}

func runCompress(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	window, _ := cmd.Flags().GetInt("window")
	who, _ := cmd.Flags().GetString("requester")

	summary, err := a.svc.CompressHistoryIfNeeded(ctx, args[0], who, window)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(summary)
	}
	if summary == nil {
		fmt.Println("Nothing to compress: the conversation fits within the window.")
		return nil
	}
	fmt.Printf("Summarized %d messages, kept %d:\n\n%s\n", summary.SummarizedCount, summary.RemainingCount, summary.Text)
	return nil
}
