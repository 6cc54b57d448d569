package cmd

import (
	"context"

	"github.com/emrgen/wikinote/internal/app"
	"github.com/emrgen/wikinote/internal/config"
	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/store"
)

// flags shared by the commands acting on a wiki
var (
	Tenant string
	UserID uint64
	Admin  bool
)

// requestContext acts as the requester given on the command line.
// Without --user or --admin the commands run anonymously.
func requestContext() context.Context {
	ctx := store.WithTenant(context.Background(), Tenant)
	if Admin {
		return identity.WithRequester(ctx, &identity.Requester{ID: UserID, Admin: true, Approved: true})
	}
	if UserID != 0 {
		return identity.WithRequester(ctx, &identity.Requester{ID: UserID, Approved: true})
	}

	return ctx
}

// openApp loads the config and wires the app. The caller closes it.
func openApp() (*app.App, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	a, err := app.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	return a, cfg, nil
}
