package usermeta

import "context"

// Repository stores key/value metadata attached to accounts. A key may hold
// several values, returned in insertion order.
type Repository interface {
	Get(ctx context.Context, accountID int64, key string) ([]string, error)
	List(ctx context.Context, accountID int64) (map[string][]string, error)
	Add(ctx context.Context, accountID int64, key, value string) error
	// Update overwrites every value stored under key, adding one when the
	// key is absent.
	Update(ctx context.Context, accountID int64, key, value string) error
	// Delete removes values under key; a nil value removes them all.
	Delete(ctx context.Context, accountID int64, key string, value *string) (int64, error)
}
