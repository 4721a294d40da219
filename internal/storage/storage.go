// Package storage is the durable byte store recordings are written to and
// read back from. Writes are not atomic: a failed write may leave a
// partial object behind, and callers must treat its contents as
// undefined.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by ReadBytes and Delete for a missing object.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidPath is returned for names that escape the store root.
	ErrInvalidPath = errors.New("invalid object path")
)

// Storage is the minimum the recorder needs from a store.
type Storage interface {
	WriteBytes(ctx context.Context, name string, data []byte) error
	ReadBytes(ctx context.Context, name string) ([]byte, error)
}

// Object describes one stored item.
type Object struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Catalog is a Storage that can also enumerate and remove objects.
type Catalog interface {
	Storage
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, name string) error
}

// cleanName normalizes a slash-separated object name and rejects anything
// absolute or climbing out of the root.
func cleanName(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\\') || strings.HasPrefix(name, "/") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}
