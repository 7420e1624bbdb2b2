package storage

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/services/storage/aws_client"
)

type ObjectStorageService struct {
	client     aws_client.S3Client
	bucketName string
	isPublic   bool
	cdnDomain  string
}

type StorageConfig struct {
	BucketName string
	IsPublic   bool
	CDNDomain  string // optional, enables public urls
}

func NewStorageService(client aws_client.S3Client, config StorageConfig) interfaces.StorageService {
	return &ObjectStorageService{
		client:     client,
		bucketName: config.BucketName,
		isPublic:   config.IsPublic,
		cdnDomain:  strings.TrimSuffix(strings.TrimPrefix(config.CDNDomain, "https://"), "/"),
	}
}

func (s *ObjectStorageService) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("bucket", s.bucketName, "key", key, "size", len(data))

	input := s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if s.isPublic {
		input.ACL = aws.String("public-read")
	}

	if err := s.client.Upload(ctx, input); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *ObjectStorageService) Download(ctx context.Context, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	content, err := s.client.Download(ctx, s.bucketName, key)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return content, nil
}

func (s *ObjectStorageService) Delete(ctx context.Context, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ObjectStorageService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := s.client.Delete(ctx, s.bucketName, key); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *ObjectStorageService) GetPublicURL(key string) string {
	if s.cdnDomain == "" {
		return ""
	}
	return "https://" + s.cdnDomain + "/" + key
}
