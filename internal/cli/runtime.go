package cli

import (
	"context"
	"fmt"

	"github.com/tOgg1/supportdesk/internal/api"
	"github.com/tOgg1/supportdesk/internal/config"
	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/db"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/logging"
)

// runtime is everything a command needs to talk to the backend.
type runtime struct {
	cfg      *config.Config
	client   *api.Client
	liveBase string
	database *db.DB
	drafts   *db.DraftRepository
}

func openRuntime(ctx context.Context, cfg *config.Config, withDrafts bool) (*runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	client, err := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		return nil, err
	}

	liveBase := cfg.Live.BaseURL
	if liveBase == "" {
		liveBase, err = live.BaseFromAPI(cfg.API.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("derive live endpoint: %w", err)
		}
	}

	rt := &runtime{cfg: cfg, client: client, liveBase: liveBase}
	if withDrafts && cfg.Drafts.Path != "" {
		database, err := db.Open(ctx, cfg.Drafts.Path)
		if err != nil {
			// Drafts are a convenience; run without them.
			logging.Logger.Warn().Err(err).Str("path", cfg.Drafts.Path).Msg("drafts disabled")
		} else {
			rt.database = database
			rt.drafts = db.NewDraftRepository(database)
		}
	}
	return rt, nil
}

func (rt *runtime) reconnectPolicy() live.ReconnectPolicy {
	rc := rt.cfg.Live.Reconnect
	if !rc.Enabled {
		return live.NoReconnect{}
	}
	return live.NewBackoffPolicy(rc.MinBackoff, rc.MaxBackoff, rc.MaxAttempts)
}

// sessionDeps wires the session to the API client and the websocket dialer.
func (rt *runtime) sessionDeps() conversation.Deps {
	deps := conversation.Deps{
		Fetcher: rt.client,
		Sender:  rt.client,
		Dialer: live.NewWebsocketDialer(live.WebsocketConfig{
			Token:            rt.cfg.API.Token,
			HandshakeTimeout: rt.cfg.Live.HandshakeTimeout,
			ReadLimit:        rt.cfg.Live.ReadLimit,
		}),
		LiveBase:  rt.liveBase,
		Reconnect: rt.reconnectPolicy(),
	}
	if rt.drafts != nil {
		deps.Drafts = rt.drafts
	}
	return deps
}

func (rt *runtime) Close() error {
	if rt == nil || rt.database == nil {
		return nil
	}
	return rt.database.Close()
}
