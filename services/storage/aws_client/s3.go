package aws_client

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/internal/tracing"
)

type S3Client interface {
	Upload(ctx context.Context, input s3manager.UploadInput) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}

type s3Client struct {
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	api        *s3.S3
}

func NewS3Client(config *aws.Config) (S3Client, error) {
	s, err := session.NewSession(config)
	if err != nil {
		return nil, err
	}
	return &s3Client{
		uploader:   s3manager.NewUploader(s),
		downloader: s3manager.NewDownloader(s),
		api:        s3.New(s),
	}, nil
}

func (c *s3Client) Upload(ctx context.Context, input s3manager.UploadInput) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Upload")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", aws.StringValue(input.Key))

	_, err := c.uploader.UploadWithContext(ctx, &input)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (c *s3Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key)

	buffer := &aws.WriteAtBuffer{}
	_, err := c.downloader.DownloadWithContext(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return buffer.Bytes(), nil
}

func (c *s3Client) Delete(ctx context.Context, bucket, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "s3Client.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("key", key)

	_, err := c.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}
