// Package imagestore decodes uploaded images and stores them on the local
// filesystem or in an S3 bucket.
//
// Images arrive as base64 data URIs:
//
//	data:image/png;base64,iVBORw0KGgo...
//
// A Store saves the decoded bytes under a generated key and turns keys back
// into public URLs. The database keeps only the key.
package imagestore

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/foodgram/internal/apperror"
)

// Folders used by the services.
const (
	FolderRecipes = "recipes/images"
	FolderAvatars = "users"
)

// MaxImageBytes caps the decoded size of one upload.
const MaxImageBytes = 10 << 20

// Image is a decoded upload.
type Image struct {
	ContentType string // e.g. "image/png"
	Ext         string // e.g. "png"
	Data        []byte
}

// Store persists images.
type Store interface {
	// Save writes img under folder and returns its key.
	Save(ctx context.Context, folder string, img Image) (string, error)
	// URL returns the public URL for key. An empty key yields "".
	URL(key string) string
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// DecodeDataURI parses a base64 data URI. field names the request field in
// the returned validation error.
func DecodeDataURI(field, s string) (Image, error) {
	if s == "" {
		return Image{}, apperror.ValidationFailed(field, field+" is required")
	}

	header, payload, ok := strings.Cut(s, ";base64,")
	if !ok || !strings.HasPrefix(header, "data:") {
		return Image{}, apperror.ValidationFailed(field, field+" must be a base64 data URI")
	}

	contentType := strings.ToLower(strings.TrimPrefix(header, "data:"))
	subtype, isImage := strings.CutPrefix(contentType, "image/")
	if !isImage || subtype == "" {
		return Image{}, apperror.ValidationFailed(field, field+" must be an image")
	}
	ext, ok := extensions[subtype]
	if !ok {
		return Image{}, apperror.ValidationFailed(field, field+" must be a PNG, JPEG, GIF or WebP image")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Image{}, apperror.ValidationFailed(field, field+" is not valid base64")
	}
	if len(data) == 0 {
		return Image{}, apperror.ValidationFailed(field, field+" is empty")
	}
	if len(data) > MaxImageBytes {
		return Image{}, apperror.ValidationFailed(field, field+" is too large")
	}

	return Image{ContentType: mimeTypes[ext], Ext: ext, Data: data}, nil
}

// extensions maps accepted image subtypes to stored file extensions. Anything
// else, SVG included, is rejected.
var extensions = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"jpg":  "jpg",
	"gif":  "gif",
	"webp": "webp",
}

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// newKey builds "<folder>/<xid>.<ext>".
func newKey(folder string, img Image) string {
	return strings.Trim(folder, "/") + "/" + xid.New().String() + "." + img.Ext
}
