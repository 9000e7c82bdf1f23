package admin

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
)

// appBackend runs commands against the same wiring the server uses.
type appBackend struct {
	app *server.App
}

// AppOpener returns an Opener that assembles a server.App, logging to w.
func AppOpener(w io.Writer) Opener {
	return func(ctx context.Context, cfg *config.Config) (Backend, error) {
		app, err := server.NewApp(ctx, cfg, logging.NewJSONLogger(w, cfg.LogLevel))
		if err != nil {
			return nil, err
		}
		return &appBackend{app: app}, nil
	}
}

func (b *appBackend) Migrate(ctx context.Context) error { return b.app.Migrate(ctx) }

func (b *appBackend) IssueToken(subject string, roles []auth.Role) (string, error) {
	return b.app.Tokens().Issue(subject, roles)
}

func (b *appBackend) RegisterUser(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	return b.app.Users().Register(ctx, in)
}

func (b *appBackend) CollectOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	return b.app.Assets().CollectOrphans(ctx, olderThan)
}

func (b *appBackend) Close() error { return b.app.Close() }
