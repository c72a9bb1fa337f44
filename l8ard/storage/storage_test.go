package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/example/go-l8ard/l8ard/internal/retry"
)

type mockLister struct {
	objects map[string]bool
	inputs  []*s3.ListObjectsV2Input
	failN   int
}

func (m *mockLister) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	copied := *in
	m.inputs = append(m.inputs, &copied)
	if m.failN > 0 {
		m.failN--
		return nil, fmt.Errorf("SlowDown")
	}
	out := &s3.ListObjectsV2Output{}
	if m.objects[aws.ToString(in.Prefix)] {
		out.Contents = []types.Object{{Key: in.Prefix}}
	}
	return out, nil
}

type mockS3Downloader struct {
	content []byte
	input   *s3.GetObjectInput
}

func (m *mockS3Downloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, _ ...func(*manager.Downloader)) (int64, error) {
	copied := *input
	m.input = &copied
	if len(m.content) == 0 {
		return 0, fmt.Errorf("no content configured")
	}
	if _, err := w.WriteAt(m.content, 0); err != nil {
		return 0, err
	}
	return int64(len(m.content)), nil
}

type mockS3Uploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (m *mockS3Uploader) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	copied := *input
	m.input = &copied
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.body = data
	return &manager.UploadOutput{Key: input.Key}, nil
}

func fastRetry() retry.Policy {
	return retry.NewPolicy(3, time.Millisecond, nil)
}

func TestS3CatalogExists(t *testing.T) {
	lister := &mockLister{objects: map[string]bool{"a/b/x.TIF": true}, failN: 1}
	catalog := NewS3Catalog(nil, "usgs-landsat", WithCatalogRetry(fastRetry()))
	catalog.lister = lister

	ok, err := catalog.Exists(context.Background(), "a/b/x.TIF")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected object to exist")
	}
	if len(lister.inputs) != 2 {
		t.Fatalf("expected a retried list call, got %d calls", len(lister.inputs))
	}
	in := lister.inputs[1]
	if aws.ToString(in.Bucket) != "usgs-landsat" || aws.ToString(in.Delimiter) != "/" {
		t.Fatalf("unexpected list input: %+v", in)
	}
	if in.RequestPayer != types.RequestPayerRequester {
		t.Fatalf("expected requester pays, got %q", in.RequestPayer)
	}

	ok, err = catalog.Exists(context.Background(), "/a/b/missing.TIF")
	if err != nil || ok {
		t.Fatalf("expected missing object, got %v %v", ok, err)
	}
	if got := aws.ToString(lister.inputs[len(lister.inputs)-1].Prefix); got != "a/b/missing.TIF" {
		t.Fatalf("expected leading slash trimmed, got %q", got)
	}
}

func TestS3CatalogExistsWithoutRequesterPays(t *testing.T) {
	lister := &mockLister{}
	catalog := NewS3Catalog(nil, "bucket", WithRequesterPays(false))
	catalog.lister = lister
	if _, err := catalog.Exists(context.Background(), "k"); err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if lister.inputs[0].RequestPayer != "" {
		t.Fatalf("expected no request payer, got %q", lister.inputs[0].RequestPayer)
	}
}

func TestS3CatalogNilClient(t *testing.T) {
	catalog := NewS3Catalog(nil, "bucket")
	if _, err := catalog.Exists(context.Background(), "k"); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
	if _, err := catalog.Fetch(context.Background(), "k", filepath.Join(t.TempDir(), "x")); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestS3CatalogFetch(t *testing.T) {
	mock := &mockS3Downloader{content: []byte("tiffdata")}
	catalog := NewS3Catalog(nil, "usgs-landsat", WithCatalogRetry(fastRetry()))
	catalog.downloader = mock

	dest := filepath.Join(t.TempDir(), "nested", "x.TIF")
	n, err := catalog.Fetch(context.Background(), "path/x.TIF", dest)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if n != int64(len("tiffdata")) {
		t.Fatalf("unexpected size %d", n)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "tiffdata" {
		t.Fatalf("unexpected content %q", data)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone, got %v", err)
	}
	if aws.ToString(mock.input.Key) != "path/x.TIF" || mock.input.RequestPayer != types.RequestPayerRequester {
		t.Fatalf("unexpected get input: %+v", mock.input)
	}
}

func TestS3CatalogFetchFailureRemovesTemp(t *testing.T) {
	catalog := NewS3Catalog(nil, "bucket", WithCatalogRetry(retry.Never{}))
	catalog.downloader = &mockS3Downloader{}
	dest := filepath.Join(t.TempDir(), "x.TIF")
	if _, err := catalog.Fetch(context.Background(), "k", dest); err == nil {
		t.Fatalf("expected download error")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file removal, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected no destination file, got %v", err)
	}
}

func TestS3Publisher(t *testing.T) {
	src := filepath.Join(t.TempDir(), "ard.tif")
	if err := os.WriteFile(src, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	mock := &mockS3Uploader{}
	pub := NewS3Publisher(nil, "ewoc-ard")
	pub.uploader = mock
	pub.retry = retry.Never{}

	n, err := pub.Publish(context.Background(), src, "prod/OPTICAL/x.tif")
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 bytes, got %d", n)
	}
	if aws.ToString(mock.input.Bucket) != "ewoc-ard" || aws.ToString(mock.input.Key) != "prod/OPTICAL/x.tif" {
		t.Fatalf("unexpected upload input: %+v", mock.input)
	}
	if string(mock.body) != "0123456789" {
		t.Fatalf("unexpected body %q", mock.body)
	}
	if pub.URI("prod/OPTICAL") != "s3://ewoc-ard/prod/OPTICAL" {
		t.Fatalf("unexpected uri %s", pub.URI("prod/OPTICAL"))
	}

	mock.err = errors.New("AccessDenied")
	if _, err := pub.Publish(context.Background(), src, "k"); err == nil {
		t.Fatalf("expected upload error")
	}
	if _, err := pub.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.tif"), "k"); err == nil {
		t.Fatalf("expected stat error")
	}
}

func TestLocalPublisherAndCatalog(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "ard.tif")
	if err := os.WriteFile(src, []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pub := LocalPublisher{Root: root}
	n, err := pub.Publish(context.Background(), src, "prod/TIR/a/b.tif")
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes, got %d", n)
	}

	catalog := LocalCatalog{Root: root}
	ok, err := catalog.Exists(context.Background(), "prod/TIR/a/b.tif")
	if err != nil || !ok {
		t.Fatalf("expected published file to exist: %v %v", ok, err)
	}
	ok, err = catalog.Exists(context.Background(), "prod/TIR/a/none.tif")
	if err != nil || ok {
		t.Fatalf("expected missing file: %v %v", ok, err)
	}

	dest := filepath.Join(t.TempDir(), "fetched.tif")
	if _, err := catalog.Fetch(context.Background(), "prod/TIR/a/b.tif", dest); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "abc" {
		t.Fatalf("unexpected fetched content %q", data)
	}
}

func TestS3ConfigAWSConfig(t *testing.T) {
	ctx := context.Background()
	cfg, err := S3Config{Region: "eu-central-1", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}.AWSConfig(ctx)
	if err != nil {
		t.Fatalf("AWSConfig: %v", err)
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKIA" || cfg.Region != "eu-central-1" {
		t.Fatalf("unexpected config: %+v %+v", cfg, creds)
	}

	cfg, err = S3Config{Anonymous: true}.AWSConfig(ctx)
	if err != nil {
		t.Fatalf("AWSConfig: %v", err)
	}
	if _, ok := cfg.Credentials.(aws.AnonymousCredentials); !ok {
		t.Fatalf("expected anonymous credentials, got %T", cfg.Credentials)
	}
	if cfg.Region != DefaultSourceRegion {
		t.Fatalf("expected default region, got %s", cfg.Region)
	}
}

func TestS3ConfigDefaultCredentialChain(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "credentials")
	data := "[default]\naws_access_key_id = AKIDSHARED\naws_secret_access_key = SECRETSHARED\n"
	if err := os.WriteFile(shared, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", shared)
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	ctx := context.Background()
	cfg, err := S3Config{Region: DefaultSourceRegion}.AWSConfig(ctx)
	if err != nil {
		t.Fatalf("AWSConfig: %v", err)
	}
	if _, ok := cfg.Credentials.(aws.AnonymousCredentials); ok {
		t.Fatalf("default chain must not fall back to anonymous signing")
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKIDSHARED" || cfg.Region != DefaultSourceRegion {
		t.Fatalf("unexpected credentials %q in region %s", creds.AccessKeyID, cfg.Region)
	}

	client, err := NewS3Client(ctx, S3Config{Region: DefaultSourceRegion, Endpoint: "http://localhost:9000", UsePathStyle: true})
	if err != nil || client == nil {
		t.Fatalf("NewS3Client: %v", err)
	}
}
