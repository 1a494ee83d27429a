// Package storage provides the object store behind conversion results.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

// Storage uploads converted artifacts and downloads them back for
// archive assembly. Implementations must tolerate concurrent calls.
type Storage interface {
	Upload(ctx context.Context, data []byte, name, contentType string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}
