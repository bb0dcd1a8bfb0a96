package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"mcard-go/internal/mcard"
)

// S3Options configures an S3Vault.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible services. Path
	// style addressing is used when it is set.
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
}

// S3Vault stores snapshots as objects in an S3 bucket:
//
//	<prefix>/snapshots/<storeID>/<version>.snap
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault creates a vault backed by the given bucket. Credentials come
// from opts when set, otherwise from the default AWS chain.
func NewS3Vault(name string, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Vault{
		name:     name,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) storePrefix(storeID string) string {
	return path.Join(v.prefix, "snapshots", storeID) + "/"
}

func (v *S3Vault) snapshotKey(storeID string, version int64) string {
	return v.storePrefix(storeID) + strconv.FormatInt(version, 10) + snapshotExt
}

// PutSnapshot uploads a snapshot of storeID under version. Large snapshots
// are sent as a multipart upload.
func (v *S3Vault) PutSnapshot(storeID string, r io.Reader, size int64, version int64) error {
	if version < 1 {
		return fmt.Errorf("invalid snapshot version %d", version)
	}
	ctx := context.Background()
	key := v.snapshotKey(storeID, version)

	_, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return fmt.Errorf("snapshot %d already exists for store %s", version, storeID)
	}
	if !isNotFound(err) {
		return fmt.Errorf("checking snapshot %s: %w", key, err)
	}

	counter := &countingReader{r: r}
	_, err = v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
		Body:   counter,
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot %s: %w", key, err)
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

// GetSnapshot downloads the snapshot of storeID at version into w.
func (v *S3Vault) GetSnapshot(storeID string, version int64, w io.Writer) error {
	key := v.snapshotKey(storeID, version)
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: store %s version %d", mcard.ErrSnapshotNotFound, storeID, version)
		}
		return fmt.Errorf("downloading snapshot %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// LatestSnapshotVersion lists the store's prefix and returns the highest
// version found, or 0.
func (v *S3Vault) LatestSnapshotVersion(storeID string) (int64, error) {
	ctx := context.Background()
	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(v.storePrefix(storeID)),
	})

	var latest int64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("listing snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			if version, ok := parseSnapshotKey(aws.ToString(obj.Key)); ok {
				latest = max(latest, version)
			}
		}
	}
	return latest, nil
}

// ValidateSetup checks that the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// parseSnapshotKey extracts the version from an object key ending in
// "<version>.snap".
func parseSnapshotKey(key string) (int64, bool) {
	name, ok := strings.CutSuffix(path.Base(key), snapshotExt)
	if !ok {
		return 0, false
	}
	version, err := strconv.ParseInt(name, 10, 64)
	if err != nil || version < 1 {
		return 0, false
	}
	return version, true
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Compile-time check that S3Vault implements mcard.Vault interface
var _ mcard.Vault = (*S3Vault)(nil)
