// Package httpapi exposes accounts and photos over HTTP with echo. Every
// route lives under /api; mutating routes require a bearer token.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

// Authenticator turns an Authorization header into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (auth.Principal, error)
}

// UserService is the account surface the handlers call.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, userName, password string) (string, error)
	ChangePassword(ctx context.Context, p auth.Principal, oldPassword, newPassword string) error
	Me(ctx context.Context, p auth.Principal) (*models.User, error)
	UpdateProfile(ctx context.Context, p auth.Principal, userID string, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, p auth.Principal, userID string) error
}

// PhotoService is the photo surface the handlers call.
type PhotoService interface {
	Replace(ctx context.Context, p auth.Principal, kind, id string, content []byte, contentType, displayName string) (*models.AssetRecord, error)
	Remove(ctx context.Context, p auth.Principal, kind, id string) error
	DeleteAsset(ctx context.Context, p auth.Principal, assetID string) error
	Fetch(ctx context.Context, assetID string) (*models.AssetRecord, io.ReadCloser, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Server is the REST API under /api.
type Server struct {
	address        string
	echo           *echo.Echo
	authenticator  Authenticator
	users          UserService
	photos         PhotoService
	health         HealthChecker
	logger         logging.Logger
	maxUploadBytes int64
}

// NewServer wires the routes. Uploads larger than maxUploadBytes are
// rejected with 413.
func NewServer(address string, a Authenticator, us UserService, ps PhotoService, health HealthChecker, maxUploadBytes int64, l logging.Logger) *Server {
	s := &Server{
		address:        address,
		echo:           echo.New(),
		authenticator:  a,
		users:          us,
		photos:         ps,
		health:         health,
		logger:         l.With("module", "http_server"),
		maxUploadBytes: maxUploadBytes,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second

	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())

	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("/healthz", s.healthz)
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)
	api.GET("/photos/:id", s.fetchPhoto)

	authed := s.authenticate
	api.PUT("/auth/password", s.changePassword, authed)

	api.GET("/users/me", s.me, authed)
	api.PATCH("/users/:id", s.updateProfile, authed)
	api.DELETE("/users/:id", s.deleteUser, authed)

	for prefix, kind := range photoOwnerRoutes {
		api.PUT(prefix+"/:id/photo", s.replacePhoto(kind), authed)
		api.DELETE(prefix+"/:id/photo", s.removePhoto(kind), authed)
	}

	api.DELETE("/photos/:id", s.deletePhoto, authed)
}

// Handler returns the routed handler without a listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
