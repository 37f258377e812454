package telegram

import (
	"fmt"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"

	"github.com/chatvault/chatvault/internal/config"
)

// NewSessionClient creates an authorized MTProto client. When a session
// string is configured it is used directly; otherwise the session lives in a
// local sqlite file, which cmd/tg-auth can populate and which persists auth
// key refreshes across runs.
func NewSessionClient(cfg *config.Config) (*gotgproto.Client, error) {
	if cfg.TGApiID == 0 || cfg.TGApiHash == "" {
		return nil, fmt.Errorf("TG_API_ID and TG_API_HASH are required")
	}

	opts := &gotgproto.ClientOpts{
		DisableCopyright: true,
	}
	if cfg.TGSessionStr != "" {
		opts.Session = sessionMaker.StringSession(cfg.TGSessionStr)
	} else {
		opts.Session = sessionMaker.SqlSession(sqlite.Open(cfg.SessionDB))
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // empty = use stored session
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	return client, nil
}
