package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codesnap/codesnap/models"
)

var (
	// ErrNotFound is returned when a paste does not exist or has expired
	ErrNotFound = errors.New("paste not found")

	// ErrDuplicateID is returned by Create when the public id is already taken
	ErrDuplicateID = errors.New("duplicate paste id")
)

// PurgeError reports an expired paste whose lazy delete failed. It matches
// ErrNotFound so readers still treat the paste as gone.
type PurgeError struct {
	PasteID string
	Err     error
}

func (e *PurgeError) Error() string {
	return fmt.Sprintf("purge expired paste %s: %v", e.PasteID, e.Err)
}

func (e *PurgeError) Unwrap() []error { return []error{ErrNotFound, e.Err} }

// expiredGone is the result of a lazy purge attempt
func expiredGone(pasteID string, err error) error {
	if err != nil {
		return &PurgeError{PasteID: pasteID, Err: err}
	}
	return ErrNotFound
}

// opTimeout bounds every backend call on top of the caller's context
const opTimeout = 10 * time.Second

// PasteStore defines the interface for paste storage backends.
// Expired rows are invisible to every read: GetBy* purge them on access and
// report ErrNotFound, list operations filter them out.
type PasteStore interface {
	// Create inserts a paste with a caller-supplied public id and returns the
	// persisted row including its internal id
	Create(ctx context.Context, paste *models.Paste) (*models.Paste, error)

	// GetByPublicID retrieves a live paste by its public id
	GetByPublicID(ctx context.Context, pasteID string) (*models.Paste, error)

	// GetByID retrieves a live paste by its internal id
	GetByID(ctx context.Context, id int64) (*models.Paste, error)

	// IncrementViews atomically adds one to the view counter
	IncrementViews(ctx context.Context, id int64) error

	// ListRecent returns live pastes newest first; limit <= 0 means unbounded
	ListRecent(ctx context.Context, limit int) ([]models.Paste, error)

	// ListRelated returns live pastes in the given language ordered by views,
	// skipping excludeID when it is non-zero
	ListRelated(ctx context.Context, language string, excludeID int64, limit int) ([]models.Paste, error)

	// Delete removes a paste; deleting a missing row is not an error
	Delete(ctx context.Context, id int64) error

	// UpdateContent replaces only the content, reporting false when the row is gone
	UpdateContent(ctx context.Context, id int64, content string) (bool, error)

	// DeleteExpired removes every row that expired at or before the given instant
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// Ping checks backend connectivity
	Ping(ctx context.Context) error

	// Close closes the storage connection
	Close() error
}

// Clock returns the current time; stores use it to decide expiry
type Clock func() time.Time

// Option configures a store
type Option func(*storeOptions)

type storeOptions struct {
	now          Clock
	maxOpenConns int
}

// WithClock overrides the time source used for expiry decisions
func WithClock(now Clock) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func withMaxOpenConns(n int) Option {
	return func(o *storeOptions) {
		o.maxOpenConns = n
	}
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
