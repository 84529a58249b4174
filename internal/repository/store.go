package repository

import (
	"context"
	"errors"
	"fmt"
)

// ErrStorageUnavailable wraps every failure of the underlying store.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is the opaque key/value surface the planner persists through.
// Load reports ok=false for a missing key.
type Store interface {
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	ListAll(ctx context.Context) ([]string, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
