package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/assets"
	"github.com/dmitrijs2005/lostfound/internal/server/models"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
	"github.com/labstack/echo/v4"
)

// photoFormField is the multipart field carrying the image.
const photoFormField = "photo"

var photoOwnerRoutes = map[string]string{
	"/users":   assets.KindUser,
	"/offices": assets.KindOffice,
	"/items":   assets.KindItem,
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidArgument, msg)
}

func (s *Server) healthz(c echo.Context) error {
	if s.health != nil {
		if err := s.health.PingContext(c.Request().Context()); err != nil {
			s.logger.Warn(c.Request().Context(), "health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}

	u, err := s.users.Register(c.Request().Context(), services.RegisterInput{
		UserName:   req.UserName,
		Password:   req.Password,
		Name:       req.Name,
		Surname:    req.Surname,
		Mail:       req.Mail,
		Salutation: req.Salutation,
		Country:    req.Country,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newUserResponse(u))
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}

	token, err := s.users.Login(c.Request().Context(), req.UserName, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, TokenType: "Bearer"})
}

func (s *Server) changePassword(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}

	if err := s.users.ChangePassword(c.Request().Context(), p, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) me(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	u, err := s.users.Me(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(u))
}

func (s *Server) updateProfile(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var patch models.UserPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest("invalid body")
	}

	u, err := s.users.UpdateProfile(c.Request().Context(), p, c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(u))
}

func (s *Server) deleteUser(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) replacePhoto(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := principal(c)
		if err != nil {
			return err
		}

		content, contentType, name, err := s.readPhoto(c)
		if err != nil {
			return err
		}

		rec, err := s.photos.Replace(c.Request().Context(), p, kind, c.Param("id"), content, contentType, name)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newAssetResponse(rec))
	}
}

// readPhoto reads the multipart photo field, refusing anything larger than
// the configured limit.
func (s *Server) readPhoto(c echo.Context) ([]byte, string, string, error) {
	if s.maxUploadBytes > 0 {
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, s.maxUploadBytes+1<<20)
	}

	fh, err := c.FormFile(photoFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return nil, "", "", badRequest("multipart field " + strconv.Quote(photoFormField) + " is required")
	}
	if s.maxUploadBytes > 0 && fh.Size > s.maxUploadBytes {
		return nil, "", "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "photo exceeds "+strconv.FormatInt(s.maxUploadBytes, 10)+" bytes")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, "", "", badRequest("photo is empty")
	}

	return content, fh.Header.Get(echo.HeaderContentType), fh.Filename, nil
}

func (s *Server) removePhoto(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		if err := s.photos.Remove(c.Request().Context(), p, kind, c.Param("id")); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) deletePhoto(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := s.photos.DeleteAsset(c.Request().Context(), p, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) fetchPhoto(c echo.Context) error {
	rec, body, err := s.photos.Fetch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	defer body.Close()

	h := c.Response().Header()
	h.Set(echo.HeaderContentLength, strconv.FormatInt(rec.Size, 10))
	h.Set("Cache-Control", "public, max-age=86400, immutable")
	return c.Stream(http.StatusOK, string(rec.ContentType), body)
}
