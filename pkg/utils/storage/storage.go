// Package storage puts public objects on Cloudflare R2 or AWS S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dinidesk_backend/pkg/config"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Client struct {
	api     ObjectAPI
	bucket  string
	baseURL string
}

// New builds a client from cfg. With an AccountID it talks to R2, otherwise
// to S3 with the default credential chain unless keys are given.
func New(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("storage: bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(regionOf(cfg))}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AccountID != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(api, cfg.Bucket, publicBase(cfg)), nil
}

// NewWithAPI wires an existing client, mostly for tests.
func NewWithAPI(api ObjectAPI, bucket, baseURL string) *Client {
	return &Client{api: api, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

func regionOf(cfg config.StorageConfig) string {
	if cfg.AccountID != "" || cfg.Region == "" {
		return "auto"
	}
	return cfg.Region
}

func publicBase(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	if cfg.AccountID != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", cfg.AccountID, cfg.Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, regionOf(cfg))
}

// Put uploads body under key and returns its public URL.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("could not upload %s: %w", key, err)
	}
	return c.URL(key), nil
}

// Delete removes the object behind a URL returned by Put. URLs from another
// host are ignored.
func (c *Client) Delete(ctx context.Context, objectURL string) error {
	key, ok := c.KeyOf(objectURL)
	if !ok {
		return nil
	}
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("could not delete %s: %w", key, err)
	}
	return nil
}

func (c *Client) URL(key string) string {
	return c.baseURL + "/" + key
}

// KeyOf extracts the object key from a public URL.
func (c *Client) KeyOf(objectURL string) (string, bool) {
	rest, ok := strings.CutPrefix(objectURL, c.baseURL+"/")
	if !ok || rest == "" {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return key, true
}
