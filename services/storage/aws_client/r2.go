package aws_client

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
}

func R2Endpoint(accountID string) string {
	return "https://" + accountID + ".r2.cloudflarestorage.com"
}

// NewR2AWSConfig points the S3 SDK at Cloudflare R2
func NewR2AWSConfig(config R2Config) *aws.Config {
	return &aws.Config{
		Endpoint:         aws.String(R2Endpoint(config.AccountID)),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
}

func NewR2Client(config R2Config) (S3Client, error) {
	return NewS3Client(NewR2AWSConfig(config))
}
