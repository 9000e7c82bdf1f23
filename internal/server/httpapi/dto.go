package httpapi

import (
	"time"

	"github.com/dmitrijs2005/lostfound/internal/server/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

type registerRequest struct {
	UserName   string `json:"username"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Mail       string `json:"mail"`
	Salutation string `json:"salutation"`
	Country    string `json:"country"`
}

type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	ID         string     `json:"id"`
	UserName   string     `json:"username"`
	Name       string     `json:"name,omitempty"`
	Surname    string     `json:"surname,omitempty"`
	Mail       string     `json:"mail,omitempty"`
	Salutation string     `json:"salutation,omitempty"`
	Country    string     `json:"country,omitempty"`
	PhotoID    *string    `json:"photo_id,omitempty"`
	PhotoURL   string     `json:"photo_url,omitempty"`
	Roles      []string   `json:"roles"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

func newUserResponse(u *models.User) userResponse {
	r := userResponse{
		ID:         u.ID,
		UserName:   u.UserName,
		Name:       u.Name,
		Surname:    u.Surname,
		Mail:       u.Mail,
		Salutation: u.Salutation,
		Country:    u.Country,
		PhotoID:    u.PhotoID,
		Roles:      u.Roles,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	if u.PhotoID != nil {
		r.PhotoURL = photoURL(*u.PhotoID)
	}
	if r.Roles == nil {
		r.Roles = []string{}
	}
	return r
}

type assetResponse struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	DisplayName string    `json:"display_name,omitempty"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func newAssetResponse(a *models.AssetRecord) assetResponse {
	return assetResponse{
		ID:          a.ID,
		URL:         photoURL(a.ID),
		ContentType: string(a.ContentType),
		DisplayName: a.DisplayName,
		Size:        a.Size,
		UploadedAt:  a.UploadedAt,
	}
}

func photoURL(id string) string { return "/api/photos/" + id }
