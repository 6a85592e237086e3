package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/supportdesk/internal/desktui"
)

func init() {
	rootCmd.AddCommand(conversationsCmd)
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations",
	Long:    "List the conversations visible to the operator, most recent activity as reported by the server.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, GetConfig(), false)
		if err != nil {
			return err
		}
		defer rt.Close()

		items, err := rt.client.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}

		if IsJSONOutput() {
			return WriteOutput(os.Stdout, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stdout, "No conversations found.")
			return nil
		}

		now := time.Now()
		rows := make([][]string, 0, len(items))
		for _, item := range items {
			status := item.Status
			if status == "" {
				status = "-"
			}
			rows = append(rows, []string{
				item.ID.String(),
				item.StudentName,
				item.StudentPhone,
				status,
				desktui.LastActivity(item, now),
			})
		}
		return writeTable(os.Stdout, []string{"ID", "STUDENT", "PHONE", "STATUS", "LAST ACTIVITY"}, rows)
	},
}
