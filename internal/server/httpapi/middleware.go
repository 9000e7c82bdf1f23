package httpapi

import (
	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// authenticate verifies the bearer token and puts the principal into the
// request context. Handlers read it back with principal.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		p, err := s.authenticator.Authenticate(req.Context(), req.Header.Get(common.AuthorizationHeaderName))
		if err != nil {
			return err
		}
		c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))
		return next(c)
	}
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(c.Request().Context())
	if !ok {
		return auth.Principal{}, common.ErrInvalidToken
	}
	return p, nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.String(),
				"remote_ip", v.RemoteIP,
			}
			if p, ok := auth.PrincipalFrom(ctx); ok {
				args = append(args, "subject", p.Subject)
			}
			if v.Error != nil {
				s.logger.Warn(ctx, "request failed", append(args, "error", v.Error)...)
				return nil
			}
			s.logger.Info(ctx, "request", args...)
			return nil
		},
	})
}
