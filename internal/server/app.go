// Package server wires the lostfound server together: configuration,
// storage backends, services and the HTTP and gRPC endpoints. It also
// exposes the assembled parts to the admin CLI.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/blob"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/events"
	"github.com/dmitrijs2005/lostfound/internal/server/httpapi"
	"github.com/dmitrijs2005/lostfound/internal/server/locks"
	"github.com/dmitrijs2005/lostfound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/lostfound/internal/server/grpc"
)

// lockTTL is how long a Redis photo lock outlives a crashed holder. Live
// holders extend it, so it does not cap how long an upload may take.
const lockTTL = 30 * time.Second

// App owns the server's long-lived resources: the database, the blob store,
// the locker, the event publisher and both listeners.
type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	tokens       *auth.TokenService
	guard        *auth.Guard
	assets       *assets.Manager
	userService  *services.UserService
	photoService *services.PhotoService
	closers      []func() error
}

// NewApp connects to the database, the blob store and the optional lock
// and event backends. Close releases them.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	store, err := app.newBlobStore(ctx)
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	locker, err := app.newLocker(ctx)
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	publisher, err := app.newPublisher()
	if err != nil {
		return nil, errors.Join(err, app.Close())
	}

	app.repomanager = repomanager.NewPostgresRepositoryManager()
	app.tokens = auth.NewTokenService([]byte(c.SecretKey), c.AccessTokenValidityDuration, logger)
	app.guard = auth.NewGuard(logger)
	app.assets = assets.NewManager(store, app.repomanager.Assets(db), logger,
		assets.WithLocker(locker),
		assets.WithPublisher(publisher),
		assets.WithTimeout(c.StoreCallTimeout),
	)
	app.userService = services.NewUserService(db, app.repomanager, app.tokens, app.guard, app.assets, logger)
	app.photoService = services.NewPhotoService(db, app.repomanager, app.guard, app.assets, logger)

	return app, nil
}

func (app *App) newBlobStore(ctx context.Context) (blob.Store, error) {
	switch app.config.BlobBackend {
	case config.BlobBackendLocal:
		return blob.NewLocalStore(app.config.BlobRoot)
	case config.BlobBackendS3:
		return blob.NewS3Store(ctx, blob.S3Options{
			User:         app.config.S3RootUser,
			Password:     app.config.S3RootPassword,
			Bucket:       app.config.S3Bucket,
			Region:       app.config.S3Region,
			BaseEndpoint: app.config.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", app.config.BlobBackend)
	}
}

func (app *App) newLocker(ctx context.Context) (locks.Locker, error) {
	switch app.config.LockBackend {
	case config.LockBackendLocal:
		return locks.NewLocalLocker(), nil
	case config.LockBackendRedis:
		client, err := locks.NewRedisClient(ctx, app.config.RedisAddr, app.config.RedisPassword, app.config.RedisDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		return locks.NewRedisLocker(client, lockTTL, app.logger), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", app.config.LockBackend)
	}
}

func (app *App) newPublisher() (events.Publisher, error) {
	if app.config.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	p, err := events.DialAMQP(app.config.AMQPURL, events.DefaultQueue, app.logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, p.Close)
	return p, nil
}

// Migrate applies pending database migrations.
func (app *App) Migrate(ctx context.Context) error {
	return app.repomanager.RunMigrations(ctx, app.db)
}

// Tokens returns the token service built from the configured secret.
func (app *App) Tokens() *auth.TokenService { return app.tokens }

// Assets returns the photo lifecycle manager.
func (app *App) Assets() *assets.Manager { return app.assets }

// Users returns the account service.
func (app *App) Users() *services.UserService { return app.userService }

// Config returns the configuration the app was built with.
func (app *App) Config() *config.Config { return app.config }

// Close releases connections in reverse order of acquisition.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	authenticator := auth.NewRequestAuthenticator(app.tokens)
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, authenticator, app.userService, app.photoService, app.db, app.config.MaxUploadBytes, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	authenticator := auth.NewRequestAuthenticator(app.tokens)
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, authenticator, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the database and serves HTTP and gRPC until a signal
// arrives or ctx is canceled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return app.Close()
}
