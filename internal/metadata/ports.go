// Package metadata defines the store holding one row per UploadRecord.
package metadata

import (
	"context"
	"errors"
	"time"

	"homeinspect/internal/core"
)

// ErrNotFound is returned when no record matches an owner and id.
var ErrNotFound = errors.New("upload record not found")

// TimestampLayout is the fixed-width UTC layout used where timestamps are
// stored as text, so lexical order matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Query selects an owner's records. Zero From/To leave that side unbounded;
// both bounds are inclusive. An empty ItemType matches every item.
type Query struct {
	OwnerID  string
	From     time.Time
	To       time.Time
	ItemType core.ChecklistItem
}

// InBounds returns a query restricted to the inclusive bounds b.
func (q Query) InBounds(b core.Bounds) Query {
	q.From, q.To = b.Start, b.End
	return q
}

// Matches reports whether r satisfies the query.
func (q Query) Matches(r core.UploadRecord) bool {
	if r.OwnerID != q.OwnerID {
		return false
	}
	if q.ItemType != "" && r.ItemType != q.ItemType {
		return false
	}
	if !q.From.IsZero() && r.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && r.Timestamp.After(q.To) {
		return false
	}
	return true
}

// Store is the remote metadata store. Insert returns the record with its
// server-assigned ID. List returns records in the store's natural order,
// which for every adapter here is insertion order.
type Store interface {
	Insert(ctx context.Context, r core.UploadRecord) (core.UploadRecord, error)
	List(ctx context.Context, q Query) ([]core.UploadRecord, error)
	Get(ctx context.Context, ownerID, id string) (core.UploadRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
}
