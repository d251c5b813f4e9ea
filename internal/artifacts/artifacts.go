// Package artifacts persists trained model files.
package artifacts

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no artifact with that name exists.
var ErrNotFound = errors.New("artifact not found")

// Store saves and loads named blobs. Save overwrites wholesale.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}
