package models

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// ContentType is the closed set of accepted photo formats.
type ContentType string

const (
	ContentTypePNG  ContentType = "image/png"
	ContentTypeJPEG ContentType = "image/jpeg"
	ContentTypeGIF  ContentType = "image/gif"
)

// ParseContentType normalizes a Content-Type header value and accepts only
// png, jpeg and gif. Parameters such as charset are dropped.
func ParseContentType(raw string) (ContentType, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", raw, err)
	}

	switch ct := ContentType(strings.ToLower(mediaType)); ct {
	case ContentTypePNG, ContentTypeJPEG, ContentTypeGIF:
		return ct, nil
	case "image/jpg", "image/pjpeg":
		return ContentTypeJPEG, nil
	default:
		return "", fmt.Errorf("content type %q is not accepted", mediaType)
	}
}

// Extension returns the usual file extension for the type.
func (c ContentType) Extension() string {
	switch c {
	case ContentTypePNG:
		return ".png"
	case ContentTypeJPEG:
		return ".jpg"
	case ContentTypeGIF:
		return ".gif"
	default:
		return ""
	}
}

// AssetRecord is the metadata of one stored photo. ExternalKey is the only
// link to the bytes in the blob store.
type AssetRecord struct {
	ID          string
	ExternalKey string
	ContentType ContentType
	DisplayName string
	Size        int64
	UploadedAt  time.Time
}
