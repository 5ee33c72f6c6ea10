package account

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("account: not found")
	ErrAlreadyExists = errors.New("account: already exists")
)

// Store persists account records. Implementations must enforce email and
// google-id uniqueness atomically at the storage layer; the federated linker
// relies on that rather than on its own read-then-write sequence.
type Store interface {
	Create(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (*Account, error)
	Update(ctx context.Context, a *Account) error
}
