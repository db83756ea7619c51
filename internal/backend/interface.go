package backend

import (
	"context"

	"homeinspect/internal/blob"
	"homeinspect/internal/identity"
	"homeinspect/internal/metadata"
)

// CleanupFunc releases resources held by the selected adapters.
type CleanupFunc func() error

// ReadinessCheck pings one backing store.
type ReadinessCheck func(ctx context.Context) error

// Stores bundles the adapters selected by configuration.
type Stores struct {
	Blobs   blob.Store
	Records metadata.Store
	Users   identity.Store

	// Checks are named readiness checks for /readyz; stores without a cheap ping
	// are left out.
	Checks  map[string]ReadinessCheck
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Stores, error)
}

// Config holds configuration for store creation.
type Config struct {
	Blob     BlobType
	Metadata MetadataType

	// SQLite holds metadata for the sqlite backend and users and sessions
	// for every persistent backend.
	SQLiteDBPath string

	// AWS
	AWSRegion      string
	AWSEndpointURL string
	S3Bucket       string
	PublicBaseURL  string
	DynamoDBTable  string
}

type BlobType string

const (
	BlobMemory BlobType = "memory"
	BlobS3     BlobType = "s3"
)

func (t BlobType) String() string { return string(t) }

// IsValid returns true if the blob backend type is known.
func (t BlobType) IsValid() bool {
	switch t {
	case BlobMemory, BlobS3:
		return true
	default:
		return false
	}
}

type MetadataType string

const (
	MetadataMemory   MetadataType = "memory"
	MetadataSQLite   MetadataType = "sqlite"
	MetadataDynamoDB MetadataType = "dynamodb"
)

func (t MetadataType) String() string { return string(t) }

// IsValid returns true if the metadata backend type is known.
func (t MetadataType) IsValid() bool {
	switch t {
	case MetadataMemory, MetadataSQLite, MetadataDynamoDB:
		return true
	default:
		return false
	}
}

// persistent reports whether users and sessions go to SQLite.
func (t MetadataType) persistent() bool {
	return t != MetadataMemory
}
