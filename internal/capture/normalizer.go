package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"homeinspect/internal/core"
)

// Content types produced by the normalizer. Adding a type means extending
// contentTypeOf, not inferring from file extensions.
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePDF  = "application/pdf"
)

// Payload is a normalized upload ready for the blob store.
type Payload struct {
	ItemType    core.ChecklistItem
	Bytes       []byte
	ContentType string
	StorageKey  string
	FileName    string
}

// URIReader reads the file behind a source URI as base64 text.
type URIReader interface {
	ReadBase64(ctx context.Context, uri string) (string, error)
}

// Normalizer converts capture results into payloads.
type Normalizer struct {
	reader URIReader
	now    func() time.Time
}

// NewNormalizer returns a normalizer. reader may be nil when every source
// carries inline data; now defaults to time.Now.
func NewNormalizer(reader URIReader, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{reader: reader, now: now}
}

// WithReader returns a copy of n reading URIs through reader.
func (n *Normalizer) WithReader(reader URIReader) *Normalizer {
	return &Normalizer{reader: reader, now: n.now}
}

// Normalize returns a complete payload or an error, never partial data.
func (n *Normalizer) Normalize(ctx context.Context, res Result, item core.ChecklistItem) (Payload, error) {
	if res.Cancelled {
		return Payload{}, ErrUserCancelled
	}

	var (
		data     []byte
		fileName string
		err      error
	)
	switch src := res.Source.(type) {
	case CameraPhoto:
		data, err = n.photoBytes(ctx, src.Photo)
		fileName = nameOf(src.FileName, src.URI, "photo.jpg")
	case GalleryPhoto:
		data, err = n.photoBytes(ctx, src.Photo)
		fileName = nameOf(src.FileName, src.URI, "photo.jpg")
	case Document:
		data, err = n.readURI(ctx, src.URI)
		fileName = nameOf(src.FileName, src.URI, "document.pdf")
	default:
		return Payload{}, fmt.Errorf("%w: %T", ErrUnsupportedSource, res.Source)
	}
	if err != nil {
		return Payload{}, err
	}
	if len(data) == 0 {
		return Payload{}, ErrNoBytesAvailable
	}

	return Payload{
		ItemType:    item,
		Bytes:       data,
		ContentType: contentTypeOf(res.Source),
		StorageKey:  StorageKey(item, n.now(), fileName),
		FileName:    fileName,
	}, nil
}

// StorageKey builds "<itemType>-<epochMillis>-<fileName>". Two calls within
// the same millisecond for the same item and file produce the same key.
func StorageKey(item core.ChecklistItem, at time.Time, fileName string) string {
	return fmt.Sprintf("%s-%d-%s", item, at.UnixMilli(), fileName)
}

func (n *Normalizer) photoBytes(ctx context.Context, p Photo) ([]byte, error) {
	if len(p.Bytes) > 0 {
		return p.Bytes, nil
	}
	if p.Base64 != "" {
		return decodeBase64(p.Base64)
	}
	return n.readURI(ctx, p.URI)
}

func (n *Normalizer) readURI(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" || n.reader == nil {
		return nil, ErrNoBytesAvailable
	}
	encoded, err := n.reader.ReadBase64(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNoBytesAvailable, uri, err)
	}
	return decodeBase64(encoded)
}

func decodeBase64(s string) ([]byte, error) {
	// Data URLs carry a "data:<type>;base64," prefix.
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %w", ErrNoBytesAvailable, err)
	}
	return data, nil
}

func contentTypeOf(src Source) string {
	switch src.(type) {
	case Document:
		return ContentTypePDF
	default:
		return ContentTypeJPEG
	}
}

func nameOf(explicit, uri, fallback string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return lastSegment(name)
	}
	if name := lastSegment(uri); name != "" {
		return name
	}
	return fallback
}

func lastSegment(s string) string {
	return s[strings.LastIndexAny(s, `/\`)+1:]
}
