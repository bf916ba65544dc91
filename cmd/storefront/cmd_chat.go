package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storefront/cmd/storefront/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the store assistant",
	Long: `Sends a shopper message to the assistant and prints its reply in the
store's language. Requires the assistant to be enabled in settings
(storefront settings set ai=true) and an API key (GEMINI_API_KEY).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	c, err := openContext(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	reply, ok := c.Chat(cmd.Context(), strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("the assistant is turned off for this store")
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Markdown(reply.Text, 80, c.State.Theme()))
	return nil
}
