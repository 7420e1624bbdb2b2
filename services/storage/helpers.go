package storage

import (
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/services/storage/aws_client"
)

// NewR2StorageService returns nil when R2 is not configured
func NewR2StorageService(cfg *config.R2StorageConfig) (interfaces.StorageService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client, err := aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       cfg.AccountID,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating r2 client")
	}

	return NewStorageService(client, StorageConfig{
		BucketName: cfg.AttachmentBucket,
		CDNDomain:  cfg.CDNDomain,
	}), nil
}
