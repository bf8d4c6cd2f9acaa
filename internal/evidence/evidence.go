// Package evidence stores the photos that gate repair item transitions.
package evidence

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"garage-repair-api-server/internal/apperr"

	"github.com/google/uuid"
)

// Store persists photo bytes and returns the URL clients load them from.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Opener is implemented by stores that serve the bytes themselves.
type Opener interface {
	Open(ctx context.Context, id string) ([]byte, string, error)
}

// Photo is a decoded evidence image.
type Photo struct {
	Data        []byte
	ContentType string
}

// Decode accepts plain base64 or a data URL ("data:image/jpeg;base64,...").
func Decode(image string) (Photo, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return Photo{}, apperr.Validation("image is required")
	}

	contentType := ""
	if strings.HasPrefix(image, "data:") {
		header, payload, ok := strings.Cut(image, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return Photo{}, apperr.Validation("image must be a base64 data URL")
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		image = payload
	}

	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(image)
	}
	if err != nil || len(data) == 0 {
		return Photo{}, apperr.Validation("image is not valid base64")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Photo{Data: data, ContentType: contentType}, nil
}

// ObjectKey builds the storage key of a photo, e.g. "repairs/<item>/start-<uuid>.jpg".
func ObjectKey(itemID, kind, contentType string) string {
	return fmt.Sprintf("repairs/%s/%s-%s%s", itemID, kind, uuid.New().String(), extension(contentType))
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
