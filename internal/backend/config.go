package backend

import (
	"fmt"

	"homeinspect/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		Blob:     BlobType(appConfig.BlobBackend),
		Metadata: MetadataType(appConfig.MetadataBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		AWSRegion:      appConfig.AWSRegion,
		AWSEndpointURL: appConfig.AWSEndpointURL,
		S3Bucket:       appConfig.S3Bucket,
		PublicBaseURL:  appConfig.PublicBaseURL,
		DynamoDBTable:  appConfig.DynamoDBTable,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Blob.IsValid() {
		return fmt.Errorf("invalid blob backend: %q", c.Blob)
	}
	if !c.Metadata.IsValid() {
		return fmt.Errorf("invalid metadata backend: %q", c.Metadata)
	}

	if c.Blob == BlobS3 && c.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required for s3 blob backend")
	}
	if c.Metadata == MetadataDynamoDB && c.DynamoDBTable == "" {
		return fmt.Errorf("DynamoDB table is required for dynamodb metadata backend")
	}
	if (c.Blob == BlobS3 || c.Metadata == MetadataDynamoDB) && c.AWSRegion == "" {
		return fmt.Errorf("AWS region is required for AWS backends")
	}
	if c.Metadata.persistent() && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for %s metadata backend", c.Metadata)
	}
	return nil
}
