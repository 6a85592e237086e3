package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/tOgg1/supportdesk/internal/config"
	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/desktui"
	"github.com/tOgg1/supportdesk/internal/models"
)

func runTUI(ctx context.Context, args []string) error {
	if !hasTTY() {
		return fmt.Errorf("the dashboard needs an interactive terminal; use `supportdesk watch <conversation-id>` instead")
	}

	cfg := GetConfig()
	rt, err := openRuntime(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	session := conversation.New(ctx, rt.sessionDeps())
	tuiConfig := desktui.Config{
		Session:  session,
		Lister:   rt.client,
		Contexts: config.NewContextStore(""),
		Theme:    cfg.UI.Theme,
		Locale:   cfg.UI.Locale,
	}
	if len(args) > 0 {
		tuiConfig.ConversationID = models.ID(args[0])
	}
	return desktui.Run(tuiConfig)
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
