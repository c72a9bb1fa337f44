// Package storage provides the object storage collaborators of the ARD pipeline:
// a source catalog over the USGS Landsat bucket and publishers for ARD outputs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/example/go-l8ard/l8ard/internal/retry"
)

// DefaultSourceRegion is the region of the usgs-landsat bucket.
const DefaultSourceRegion = "us-west-2"

// ErrNilClient is returned when an S3 backed collaborator has no client configured.
var ErrNilClient = errors.New("storage: nil s3 client")

// S3Config describes how to reach an S3 compatible endpoint.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UsePathStyle    bool
	// Anonymous sends unsigned requests. Requester-pays buckets reject them.
	Anonymous bool
}

// AWSConfig builds an aws.Config for c. Static keys win, Anonymous disables
// signing, and otherwise credentials come from the SDK default chain
// (environment, shared files, SSO, web identity, instance roles).
func (c S3Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	region := c.Region
	if region == "" {
		region = DefaultSourceRegion
	}
	switch {
	case c.AccessKeyID != "":
		return aws.Config{
			Region:      region,
			Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)),
		}, nil
	case c.Anonymous:
		return aws.Config{Region: region, Credentials: aws.AnonymousCredentials{}}, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("storage: load aws config: %w", err)
	}
	return cfg, nil
}

// NewS3Client constructs an S3 client for the configuration.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := c.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	}), nil
}

type s3Lister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// SourceCatalog answers existence queries for source objects and fetches them.
type SourceCatalog interface {
	Exists(ctx context.Context, key string) (bool, error)
	Fetch(ctx context.Context, key, destPath string) (int64, error)
}

// S3Catalog is a SourceCatalog over a (requester pays) S3 bucket.
type S3Catalog struct {
	bucket       string
	requestPayer bool
	lister       s3Lister
	downloader   s3Downloader
	retry        retry.Policy
}

// CatalogOption configures an S3Catalog.
type CatalogOption func(*S3Catalog)

// WithRequesterPays toggles the requester-pays header on catalog requests.
func WithRequesterPays(enabled bool) CatalogOption {
	return func(c *S3Catalog) {
		c.requestPayer = enabled
	}
}

// WithCatalogRetry overrides the retry policy used for list and download calls.
func WithCatalogRetry(policy retry.Policy) CatalogOption {
	return func(c *S3Catalog) {
		if policy != nil {
			c.retry = policy
		}
	}
}

// NewS3Catalog builds a catalog over bucket using client. Requester pays is enabled by default.
func NewS3Catalog(client *s3.Client, bucket string, opts ...CatalogOption) *S3Catalog {
	c := &S3Catalog{
		bucket:       bucket,
		requestPayer: true,
		retry:        retry.DefaultPolicy(),
	}
	if client != nil {
		c.lister = client
		c.downloader = manager.NewDownloader(client)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bucket returns the catalog bucket name.
func (c *S3Catalog) Bucket() string {
	return c.bucket
}

// Exists reports whether at least one object is listed under key used as a prefix.
func (c *S3Catalog) Exists(ctx context.Context, key string) (bool, error) {
	if c == nil || c.lister == nil {
		return false, ErrNilClient
	}
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(strings.TrimPrefix(key, "/")),
		Delimiter: aws.String("/"),
	}
	if c.requestPayer {
		input.RequestPayer = types.RequestPayerRequester
	}
	var found bool
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		out, err := c.lister.ListObjectsV2(ctx, input)
		if err != nil {
			return err
		}
		found = len(out.Contents) > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("storage: list s3://%s/%s: %w", c.bucket, key, err)
	}
	return found, nil
}

// Fetch downloads key into destPath through a temporary .part file.
func (c *S3Catalog) Fetch(ctx context.Context, key, destPath string) (n int64, err error) {
	if c == nil || c.downloader == nil {
		return 0, ErrNilClient
	}
	if destPath == "" {
		return 0, errors.New("storage: destination path required")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("storage: create destination directory: %w", err)
	}
	tmpPath := destPath + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("storage: create temp file: %w", err)
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	}
	if c.requestPayer {
		input.RequestPayer = types.RequestPayerRequester
	}
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var derr error
		n, derr = c.downloader.Download(ctx, out, input)
		return derr
	})
	if err != nil {
		return 0, fmt.Errorf("storage: download s3://%s/%s: %w", c.bucket, key, err)
	}
	if err = out.Close(); err != nil {
		return 0, fmt.Errorf("storage: close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("storage: rename temp file: %w", err)
	}
	return n, nil
}

// Publisher uploads finished ARD rasters.
type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (int64, error)
	// Location is the container name (bucket or root directory) outputs are published to.
	Location() string
	// URI returns the addressable location of a published key or prefix.
	URI(key string) string
}

// S3Publisher uploads ARD outputs to an S3 bucket with the multipart upload manager.
type S3Publisher struct {
	bucket   string
	uploader s3Uploader
	retry    retry.Policy
}

// NewS3Publisher returns a publisher writing into bucket.
func NewS3Publisher(client *s3.Client, bucket string) *S3Publisher {
	p := &S3Publisher{bucket: bucket, retry: retry.DefaultPolicy()}
	if client != nil {
		p.uploader = manager.NewUploader(client)
	}
	return p
}

// Location returns the destination bucket.
func (p *S3Publisher) Location() string {
	return p.bucket
}

// URI returns the s3:// URI of key.
func (p *S3Publisher) URI(key string) string {
	return "s3://" + p.bucket + "/" + strings.TrimPrefix(key, "/")
}

// Publish uploads localPath to key and returns the uploaded size in bytes.
func (p *S3Publisher) Publish(ctx context.Context, localPath, key string) (int64, error) {
	if p == nil || p.uploader == nil {
		return 0, ErrNilClient
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, fmt.Errorf("storage: stat %s: %w", localPath, err)
	}
	err = retry.Do(ctx, p.retry, func(ctx context.Context) error {
		f, err := os.Open(localPath)
		if err != nil {
			return retry.Permanent(err)
		}
		defer f.Close()
		_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(strings.TrimPrefix(key, "/")),
			Body:        f,
			ContentType: aws.String("image/tiff"),
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("storage: upload %s to s3://%s/%s: %w", localPath, p.bucket, key, err)
	}
	return info.Size(), nil
}
