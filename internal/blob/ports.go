// Package blob defines the key to bytes object store uploads are written to.
package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is the remote blob store. PublicURL is deterministic and does not
// touch the network.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// JoinURL appends an escaped key to a base URL.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(key)
}
