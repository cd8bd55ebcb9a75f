// Package storage is the S3-compatible object store client used to move
// source videos and rendered artifacts in and out of Tigris.
package storage

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/videditor/jobrunner/config"
	"github.com/videditor/jobrunner/errors"
)

// Client wraps the S3 API for Tigris. Safe for concurrent use; all
// in-flight jobs share one instance.
type Client struct {
	s3            *s3.Client
	defaultBucket string
	logger        *zap.SugaredLogger
}

// NewClient builds a Tigris client from static credentials with path-style
// addressing (Tigris does not serve virtual-hosted buckets).
func NewClient(ctx context.Context, tigris config.Tigris, logger *zap.SugaredLogger) (*Client, error) {
	if tigris.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(tigris.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(tigris.AccessKeyID, tigris.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load object store configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(tigris.Endpoint)
		o.UsePathStyle = true
	})

	return &Client{
		s3:            client,
		defaultBucket: tigris.Bucket,
		logger:        logger,
	}, nil
}

// DefaultBucket is the configured bucket for rendered shorts.
func (c *Client) DefaultBucket() string {
	return c.defaultBucket
}

// Download streams an object to a local file.
func (c *Client) Download(ctx context.Context, bucket, objectKey, destPath string) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to download %s/%s", bucket, objectKey)
	}
	defer out.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", destPath)
	}
	defer f.Close()

	n, err := io.Copy(f, out.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", destPath)
	}

	c.logger.Debugw("Downloaded object",
		"bucket", bucket,
		"object_key", objectKey,
		"bytes", n,
	)
	return nil
}

// Upload puts a local file into the store under objectKey.
func (c *Client) Upload(ctx context.Context, bucket, objectKey, sourcePath, contentType string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", sourcePath)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", sourcePath)
	}

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectKey),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s/%s", bucket, objectKey)
	}

	c.logger.Debugw("Uploaded object",
		"bucket", bucket,
		"object_key", objectKey,
		"bytes", info.Size(),
		"content_type", contentType,
	)
	return nil
}
