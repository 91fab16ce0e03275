package identity

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned by account stores when a key has no record.
var ErrAccountNotFound = errors.New("account not found")

// Account is a read-only projection of an account record. Either field may
// be empty.
type Account struct {
	Email string
	Phone string
}

// AccountStore looks up account records by raw key. Implementations exist
// for the fast access-record store and the general user-profile store; the
// resolver consults them in that priority order.
type AccountStore interface {
	GetAccount(ctx context.Context, key string) (*Account, error)
}

// TokenStore looks up push tokens registered for users. Callers pass at
// most ten values per query to stay within the backing store's "IN" filter
// cardinality cap.
type TokenStore interface {
	TokensByEmails(ctx context.Context, emails []string) ([]string, error)
	TokensByUserIDs(ctx context.Context, userIDs []string) ([]string, error)
}
