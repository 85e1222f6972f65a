// Package archive keeps a copy of every accepted central snapshot in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"teamsync/api/internal/workspace"
)

const prefix = "snapshots/"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinIO struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Archive stores snapshot under its ObjectKey. Writing the same snapshot
// twice overwrites the object with identical content.
func (m *MinIO) Archive(ctx context.Context, snapshot workspace.Snapshot) error {
	data, err := workspace.Encode(snapshot)
	if err != nil {
		return err
	}
	key := ObjectKey(snapshot.LastUpdated)
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Restore reads the archived snapshot with the given LastUpdated.
func (m *MinIO) Restore(ctx context.Context, lastUpdated int64) (workspace.Snapshot, error) {
	key := ObjectKey(lastUpdated)
	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return workspace.Snapshot{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return workspace.Snapshot{}, fmt.Errorf("read %s: %w", key, err)
	}
	return workspace.Decode(data)
}

// List returns the LastUpdated values of all archived snapshots, oldest
// first.
func (m *MinIO) List(ctx context.Context) ([]int64, error) {
	var out []int64
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list archive: %w", object.Err)
		}
		if lastUpdated, ok := ParseKey(object.Key); ok {
			out = append(out, lastUpdated)
		}
	}
	slices.Sort(out)
	return out, nil
}

func ObjectKey(lastUpdated int64) string {
	return prefix + strconv.FormatInt(lastUpdated, 10) + ".json"
}

// ParseKey is the inverse of ObjectKey.
func ParseKey(key string) (int64, bool) {
	name, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return 0, false
	}
	name, ok = strings.CutSuffix(name, ".json")
	if !ok {
		return 0, false
	}
	lastUpdated, err := strconv.ParseInt(name, 10, 64)
	if err != nil || lastUpdated < 0 {
		return 0, false
	}
	return lastUpdated, true
}
