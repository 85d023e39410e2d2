package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
)

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Create and inspect conversations",
}

var conversationNewCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create a conversation and print its id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		title := ""
		if len(args) == 1 {
			title = args[0]
		}
		scope, _ := cmd.Flags().GetString("scope")
		who, _ := cmd.Flags().GetString("requester")
		docs, _ := cmd.Flags().GetStringSlice("doc")

		conv, err := a.store.CreateConversation(ctx, who, title, scope)
		if err != nil {
			return err
		}
		for _, id := range docs {
			if err := a.store.AttachDocument(ctx, conv.ID, id); err != nil {
				return err
			}
		}
		fmt.Println(conv.ID)
		return nil
	},
}

var conversationAddCmd = &cobra.Command{
	Use:   "add [conversation-id] [role] [content]",
	Short: "Append a message to a conversation",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := conversation.Role(args[1])
		if role != conversation.RoleUser && role != conversation.RoleAssistant {
			return fmt.Errorf("invalid role %q: must be user or assistant", args[1])
		}

		ctx := context.Background()
		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		msg, err := a.store.AppendMessage(ctx, args[0], role, args[2])
		if err != nil {
			return err
		}
		fmt.Println(msg.ID)
		return nil
	},
}

var conversationShowCmd = &cobra.Command{
	Use:   "show [conversation-id]",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		msgs, err := a.store.ListMessages(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(msgs)
		}
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
		return nil
	},
}

func init() {
	conversationNewCmd.Flags().String("scope", "", "scope whose documents belong to the conversation")
	conversationNewCmd.Flags().String("requester", defaultRequester, "owner of the conversation")
	conversationNewCmd.Flags().StringSlice("doc", nil, "document id to attach (repeatable)")
	conversationShowCmd.Flags().Bool("json", false, "output messages as JSON")

	conversationCmd.AddCommand(conversationNewCmd, conversationAddCmd, conversationShowCmd)
	rootCmd.AddCommand(conversationCmd)
}
