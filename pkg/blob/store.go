package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob not found")

// Store keeps the raw bytes of uploaded files.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// UploadKey returns uploads/{owner}/{random}{ext}, keeping the caller's file
// name out of the storage path.
func UploadKey(ownerID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("uploads", ownerID, uuid.NewString()+ext)
}

func validKey(key string) error {
	clean := path.Clean(key)
	if key == "" || clean != key || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
