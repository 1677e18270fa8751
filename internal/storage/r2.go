package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"emt-madrid/internal/config"
	"emt-madrid/internal/sensor"
)

// S3API is the subset of the S3 client used by R2Storage.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// R2Storage handles reading and writing readings to Cloudflare R2.
type R2Storage struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewR2Storage creates a new R2 storage instance from the S3_* configuration.
func NewR2Storage(cfg *config.R2Config) *R2Storage {
	client := s3.New(s3.Options{
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		Region:       cfg.Region,
		UsePathStyle: true,
	})
	return NewR2StorageWithClient(client, cfg.BucketName, cfg.Prefix)
}

// NewR2StorageWithClient creates an R2 storage on top of an existing S3 client.
func NewR2StorageWithClient(client S3API, bucket, prefix string) *R2Storage {
	if prefix == "" {
		prefix = "readings/"
	}
	return &R2Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// WriteReadings uploads readings to R2 as a timestamped TSV object.
func (r *R2Storage) WriteReadings(ctx context.Context, readings []sensor.Reading) (string, error) {
	start := time.Now()
	defer func() {
		log.Debug().Dur("took", time.Since(start)).Int("readings", len(readings)).Msg("R2 WriteReadings completed")
	}()

	timestamp := r.now().UTC()
	key := r.prefix + snapshotName(timestamp)

	var buf bytes.Buffer
	if err := encodeTSV(&buf, timestamp, readings); err != nil {
		return "", err
	}

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/tab-separated-values"),
		Metadata: map[string]string{
			"timestamp": timestamp.Format(time.RFC3339),
			"readings":  strconv.Itoa(len(readings)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return key, nil
}

// ListSnapshots returns all snapshot keys in R2, newest first.
func (r *R2Storage) ListSnapshots(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		result, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range result.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// ReadLatest reads the most recent snapshot from R2.
func (r *R2Storage) ReadLatest(ctx context.Context) ([]sensor.Reading, time.Time, error) {
	keys, err := r.ListSnapshots(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	if len(keys) == 0 {
		return nil, time.Time{}, ErrNoSnapshots
	}

	return r.GetSnapshot(ctx, keys[0])
}

// ListAvailableTimestamps returns the snapshot timestamps, parsed from the keys.
func (r *R2Storage) ListAvailableTimestamps(ctx context.Context) ([]time.Time, error) {
	keys, err := r.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	timestamps := make([]time.Time, 0, len(keys))
	for _, key := range keys {
		ts, err := parseSnapshotTimestamp(key)
		if err == nil {
			timestamps = append(timestamps, ts)
		}
	}
	return timestamps, nil
}

// GetSnapshot downloads and parses a specific snapshot from R2.
func (r *R2Storage) GetSnapshot(ctx context.Context, key string) ([]sensor.Reading, time.Time, error) {
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	return decodeTSV(result.Body)
}

// GetSnapshotByTimestamp returns the snapshot with the key closest to target.
func (r *R2Storage) GetSnapshotByTimestamp(ctx context.Context, target time.Time) ([]sensor.Reading, time.Time, error) {
	keys, err := r.ListSnapshots(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list snapshots: %w", err)
	}

	closestKey, err := closestSnapshot(keys, target)
	if err != nil {
		return nil, time.Time{}, err
	}

	log.Debug().Str("key", closestKey).Time("target", target).Msg("R2 found closest snapshot")

	return r.GetSnapshot(ctx, closestKey)
}

// BucketExists checks if the bucket exists
func (r *R2Storage) BucketExists(ctx context.Context) (bool, error) {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.bucket),
	})
	if err == nil {
		return true, nil
	}

	return false, fmt.Errorf("failed to access bucket '%s': %w", r.bucket, err)
}
