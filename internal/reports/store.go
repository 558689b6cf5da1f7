package reports

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown ids, including ids the backing store cannot parse.
var ErrNotFound = errors.New("report not found")

// Store persists reports. Every mutation touches a single record, so the
// backing store's per-document atomicity is all that is relied on.
type Store interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, f ListFilter) ([]Report, int64, error)
	SetStatus(ctx context.Context, id string, ch StatusChange) (*Report, error)
	// Assign records the admin and moves a Submitted report to In Progress.
	Assign(ctx context.Context, id, adminID string, at time.Time) (*Report, error)
	// Touch only bumps statusUpdatedAt.
	Touch(ctx context.Context, id string, at time.Time) (*Report, error)
	Delete(ctx context.Context, id string) (*Report, error)
	Each(ctx context.Context, fn func(*Report) error) error
	Stats(ctx context.Context, since time.Time, recent int) (*Stats, error)
}
