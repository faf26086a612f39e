package label

import (
	"context"
	"errors"
	"fmt"
)

// DefaultKey is the store key the preset label set lives under.
const DefaultKey = "preset labels"

// Store is a synchronous string key-value store. Get reports ok=false when the
// key has never been written.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Updater is implemented by stores that can run a read-modify-write on one key
// atomically. fn receives the current value (ok=false when absent) and
// returns the value to write.
type Updater interface {
	Update(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error
}

var (
	// ErrParse matches any *ParseError.
	ErrParse = errors.New("stored labels are not a valid JSON array of strings")
	// ErrStorageUnavailable wraps every failure reported by the Store.
	ErrStorageUnavailable = errors.New("label storage unavailable")
)

// ParseError reports a stored value that could not be decoded.
type ParseError struct {
	Key string
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse labels under %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
