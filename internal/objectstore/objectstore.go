package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
)

// Config holds the connection settings for the object store.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint for S3-compatible stores, empty for AWS
	AccessKey string // static credentials; empty means the default chain
	SecretKey string
}

// Store uploads swing videos and posters to an S3-compatible bucket and
// mints short-lived signed URLs for playback. Object keys, never URLs, are
// what gets persisted.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// Object describes one stored object from a listing.
type Object struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// New connects to the object store and verifies the bucket is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and friends need path-style addressing.
			o.UsePathStyle = true
		}
	})

	s := &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}

	headCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.HeadBucket(headCtx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s not reachable: %w", cfg.Bucket, err)
	}

	logging.Info("Object store connected: bucket=%s region=%s", cfg.Bucket, cfg.Region)
	return s, nil
}

// VideoKey returns the canonical object key for a swing video.
func VideoKey(userID, swingID string) string {
	return fmt.Sprintf("swings/%s/%s.mp4", userID, swingID)
}

// PosterKey returns the canonical object key for a swing poster frame.
func PosterKey(userID, swingID string) string {
	return fmt.Sprintf("posters/%s/%s.jpg", userID, swingID)
}

// Put uploads an object. size is used only for metrics; pass 0 if unknown.
func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	recordOperation("put", start, err)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	if size > 0 {
		metrics.ObjectStoreUploadedBytes.Add(float64(size))
	}
	return nil
}

// SignedURL returns a presigned GET URL for an object, valid for ttl.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	recordOperation("presign", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// List returns the objects under a key prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	start := time.Now()
	var err error
	defer func() { recordOperation("list", start, err) }()

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		page, err = paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				SizeBytes:    aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

// Delete removes objects by key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	ids := make([]s3types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(key)})
	}
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &s3types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	recordOperation("delete", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	for _, e := range out.Errors {
		// Object deletion is best effort cleanup; log and move on.
		logging.Warn("failed to delete object %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

func recordOperation(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObjectStoreOperationsTotal.WithLabelValues(operation, status).Inc()
	metrics.ObjectStoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IsVideoKey reports whether a key is under the swing video prefix.
func IsVideoKey(key string) bool {
	return strings.HasPrefix(key, "swings/")
}

// SwingIDFromKey extracts the swing id from a video or poster key.
// Returns "" for keys outside the canonical layout.
func SwingIDFromKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || (parts[0] != "swings" && parts[0] != "posters") {
		return ""
	}
	base := parts[2]
	dot := strings.LastIndex(base, ".")
	if dot <= 0 {
		return ""
	}
	return base[:dot]
}
