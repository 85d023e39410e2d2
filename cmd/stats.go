package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [conversation-id]",
	Short: "Show how much of the context window a conversation uses",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Bool("json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.svc.GetContextStats(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(st)
	}

	fmt.Printf("Documents:   %d (%d tokens)\n", st.DocumentCount, st.DocumentTokens)
	fmt.Printf("Messages:    %d (%d tokens)\n", st.MessageCount, st.MessageTokens)
	fmt.Printf("Total:       %d / %d tokens (%d%%)\n", st.TotalTokens, st.ContextCeiling, st.UtilizationPercent)
	fmt.Printf("Remaining:   %d tokens\n", st.RemainingTokens)
	fmt.Printf("Can add more: %v\n", st.CanAddMore)
	if verbose {
		for _, d := range st.Documents {
			fmt.Printf("  doc %s  %s  %d tokens\n", d.DocumentID, d.Title, d.Tokens)
		}
		for _, m := range st.Messages {
			fmt.Printf("  msg %s  %s  %d tokens\n", m.MessageID, m.Role, m.Tokens)
		}
	}
	return nil
}
