package core

import (
	"net/url"
	"strings"
	"time"
)

// Location is an optional capture position.
type Location struct {
	Latitude  float64
	Longitude float64
}

// UploadRecord is one submitted photo or document for one checklist item.
type UploadRecord struct {
	ID          string // assigned by the metadata store
	OwnerID     string
	ItemType    ChecklistItem
	StorageKey  string
	PublicURL   string
	ContentType string
	Location    *Location // nil when location was denied or unavailable
	Timestamp   time.Time
}

// BlobKey returns the key the record's blob is stored under. Rows written
// before the key was stored explicitly fall back to the last path segment
// of the public URL, unescaped.
func (r UploadRecord) BlobKey() string {
	if r.StorageKey != "" {
		return r.StorageKey
	}
	if r.PublicURL == "" {
		return ""
	}
	u := r.PublicURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	seg := u[strings.LastIndex(u, "/")+1:]
	if unescaped, err := url.PathUnescape(seg); err == nil {
		return unescaped
	}
	return seg
}
