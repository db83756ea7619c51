package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"homeinspect/internal/awsutil"
	"homeinspect/internal/blob"
	blobmem "homeinspect/internal/blob/memory"
	blobs3 "homeinspect/internal/blob/s3"
	"homeinspect/internal/identity"
	"homeinspect/internal/log"
	"homeinspect/internal/metadata"
	"homeinspect/internal/metadata/dynamo"
	metamem "homeinspect/internal/metadata/memory"
	"homeinspect/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create implements Factory.Create. On error every adapter opened so far is
// closed again.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Stores, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stores := &Stores{Checks: make(map[string]ReadinessCheck)}
	var cleanups []CleanupFunc
	stores.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	var repo *storage.SQLiteRepository
	if config.Metadata.persistent() {
		var err error
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		cleanups = append(cleanups, repo.Close)
		stores.Checks["sqlite"] = repo.Ping
		stores.Users = repo
		f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", config.SQLiteDBPath)
	} else {
		stores.Users = identity.NewMemoryStore()
	}

	var awsConfig *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsConfig == nil {
			cfg, err := awsutil.Load(ctx, config.AWSRegion)
			if err != nil {
				return aws.Config{}, err
			}
			awsConfig = &cfg
		}
		return *awsConfig, nil
	}

	blobs, err := f.createBlobStore(config, loadAWS)
	if err != nil {
		_ = stores.Cleanup()
		return nil, err
	}
	stores.Blobs = blobs

	records, err := f.createMetadataStore(config, repo, loadAWS)
	if err != nil {
		_ = stores.Cleanup()
		return nil, err
	}
	stores.Records = records

	f.logger.InfoContext(ctx, "Initialized backends",
		"blob_backend", config.Blob.String(),
		"metadata_backend", config.Metadata.String())
	return stores, nil
}

func (f *DefaultFactory) createBlobStore(config Config, loadAWS func() (aws.Config, error)) (blob.Store, error) {
	switch config.Blob {
	case BlobS3:
		cfg, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 blob store: %w", err)
		}
		return blobs3.New(blobs3.NewClient(cfg, config.AWSEndpointURL), config.S3Bucket, config.AWSRegion, config.PublicBaseURL), nil
	case BlobMemory:
		base := config.PublicBaseURL
		if base == "" {
			base = "memory://inspection-images"
		}
		f.logger.Warn("Using in-memory blob store, uploads are lost on restart")
		return blobmem.New(base), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", config.Blob)
	}
}

func (f *DefaultFactory) createMetadataStore(config Config, repo *storage.SQLiteRepository, loadAWS func() (aws.Config, error)) (metadata.Store, error) {
	switch config.Metadata {
	case MetadataSQLite:
		return repo, nil
	case MetadataDynamoDB:
		cfg, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DynamoDB metadata store: %w", err)
		}
		return dynamo.New(dynamo.NewClient(cfg, config.AWSEndpointURL), config.DynamoDBTable), nil
	case MetadataMemory:
		f.logger.Warn("Using in-memory metadata store, records are lost on restart")
		return metamem.New(), nil
	default:
		return nil, fmt.Errorf("unsupported metadata backend: %s", config.Metadata)
	}
}
