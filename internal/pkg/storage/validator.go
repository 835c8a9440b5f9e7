package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
	ErrUnsupportedModel   = errors.New("model file type not allowed")
	ErrEmptyFile          = errors.New("file is empty")
	ErrForeignStoragePath = errors.New("storage path belongs to another user")
)

// MaxModelSize bounds a single model upload.
const MaxModelSize = 200 * 1024 * 1024

// ModelContentTypes maps accepted model extensions to the content type the
// upload is signed with.
var ModelContentTypes = map[string]string{
	".stl":   "model/stl",
	".3mf":   "model/3mf",
	".obj":   "model/obj",
	".step":  "model/step",
	".stp":   "model/step",
	".gcode": "text/x.gcode",
}

// ValidateModel checks a declared model upload and returns the content type
// to sign it with.
func ValidateModel(filename string, size int64) (string, error) {
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if size > MaxModelSize {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := ModelContentTypes[ext]
	if !ok {
		return "", ErrUnsupportedModel
	}
	return contentType, nil
}

// SanitizeFileName keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with '_'.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "model"
	}
	return out
}

// ModelKey is the object key for a user's model upload.
func ModelKey(userID uuid.UUID, filename string, now time.Time) string {
	return fmt.Sprintf("models/%s/%s/%s", userID, now.UTC().Format("20060102T150405"), SanitizeFileName(filename))
}

// CheckOwnedKey rejects keys outside the user's model prefix.
func CheckOwnedKey(userID uuid.UUID, key string) error {
	clean := path.Clean(key)
	if clean != key || !strings.HasPrefix(clean, "models/"+userID.String()+"/") {
		return ErrForeignStoragePath
	}
	return nil
}
