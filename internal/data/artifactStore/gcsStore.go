package artifactStore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"google.golang.org/api/iterator"
)

// GCSStore keeps artifacts as objects under a prefix. A single object write
// only becomes visible once the writer is closed successfully.
type GCSStore struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
	logger *logger_i.Logger
}

func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &GCSStore{
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
		logger: logger_i.NewLogger("gcs_artifact_store"),
	}
}

func (s *GCSStore) object(name string) string {
	return s.prefix + name
}

func (s *GCSStore) Location(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, s.object(name))
}

func (s *GCSStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	writer := s.bucket.Object(s.object(name)).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	s.logger.WithContext(ctx).Debug("artifact_written", "object", s.object(name), "bytes", len(data))
	return s.Location(name), nil
}

func (s *GCSStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	reader, err := s.bucket.Object(s.object(name)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (s *GCSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	_, err := s.bucket.Object(s.object(name)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *GCSStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	err := s.bucket.Object(s.object(name)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gcs objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if checkName(name) == nil {
			names = append(names, name)
		}
	}
	return names, nil
}
