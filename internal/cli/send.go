package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/supportdesk/internal/compose"
	"github.com/tOgg1/supportdesk/internal/models"
)

func init() {
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text...>",
	Short: "Send a message as the operator",
	Long: `Send one message into a conversation. The message shows up in the
conversation once the server echoes it on the live channel.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := models.ID(args[0])

		rt, err := openRuntime(ctx, GetConfig(), false)
		if err != nil {
			return err
		}
		defer rt.Close()

		var composer compose.Composer
		composer.SetInput(strings.Join(args[1:], " "))
		if err := composer.Submit(ctx, rt.client, id); err != nil {
			return fmt.Errorf("send to conversation %s: %w", id, err)
		}

		if IsJSONOutput() {
			return WriteOutput(os.Stdout, map[string]any{"conversation_id": id, "sent": true})
		}
		fmt.Fprintf(os.Stdout, "Sent to conversation %s\n", id)
		return nil
	},
}
