package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/labstack/echo/v4"
)

// statusFor maps a domain error to the HTTP status it is reported with.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrNotAllowed),
		errors.Is(err, common.ErrUsernameForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrAssetNotFound),
		errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUsernameTaken),
		errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, common.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUploadFailed),
		errors.Is(err, common.ErrDeletionFailed),
		errors.Is(err, common.ErrAssetUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal details of 5xx errors.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		switch {
		case errors.Is(err, common.ErrUploadFailed):
			return common.ErrUploadFailed.Error()
		case errors.Is(err, common.ErrDeletionFailed):
			return common.ErrDeletionFailed.Error()
		case errors.Is(err, common.ErrAssetUnavailable):
			return common.ErrAssetUnavailable.Error()
		}
		return http.StatusText(status)
	}
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrNotAllowed):
		return common.ErrNotAllowed.Error()
	}
	return err.Error()
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	status := statusFor(err)
	msg := ""
	if errors.As(err, &he) {
		status = he.Code
		msg = http.StatusText(status)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	} else {
		msg = publicMessage(status, err)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request error", "path", c.Path(), "status", status, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Error(c.Request().Context(), "error response not written", "error", err)
	}
}
