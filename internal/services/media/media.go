// Package media stores uploaded files in an S3-compatible bucket and returns
// stable public URLs for them.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/atharv2608/backend-for-video-streaming-platform/internal/sdk/config"
)

var ErrForeignURL = errors.New("url does not belong to the media store")

// Storer is the surface the handlers depend on. Delete failures are
// reportable but never fatal to the calling flow.
type Storer interface {
	Store(ctx context.Context, content io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

type Client struct {
	s3Client      *s3.Client
	uploader      *manager.Uploader
	bucket        string
	publicBaseURL string
}

// NewClient builds an S3 client against the configured endpoint and verifies
// the bucket exists.
func NewClient(ctx context.Context, cfg appconfig.Media) (*Client, error) {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		o.UsePathStyle = true
	})

	if _, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}

	return &Client{
		s3Client:      s3Client,
		uploader:      manager.NewUploader(s3Client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Store uploads the content under a fresh object key and returns its public
// URL.
func (c *Client) Store(ctx context.Context, content io.Reader, contentType string) (string, error) {
	key := uuid.NewString() + extensionForType(contentType)

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading object %s: %w", key, err)
	}

	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, key), nil
}

// Delete removes the object a previously returned URL points to.
func (c *Client) Delete(ctx context.Context, url string) error {
	key, err := objectKeyFromURL(url, c.publicBaseURL, c.bucket)
	if err != nil {
		return err
	}

	_, err = c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}

	return nil
}

func objectKeyFromURL(url, publicBaseURL, bucket string) (string, error) {
	prefix := fmt.Sprintf("%s/%s/", publicBaseURL, bucket)
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, url)
	}

	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, url)
	}

	return key, nil
}

func extensionForType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
