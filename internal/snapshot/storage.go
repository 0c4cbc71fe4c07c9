package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore stores backup files. This interface enables mocking of cloud
// storage in tests.
type ObjectStore interface {
	// Upload writes data to bucket/object and returns its gs:// URI.
	Upload(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)

	// Download reads the object at a gs:// URI.
	Download(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStore is the Google Cloud Storage implementation of ObjectStore.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a storage client.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Upload implements ObjectStore.
func (s *GCSStore) Upload(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy data to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return "gs://" + bucket + "/" + object, nil
}

// Download implements ObjectStore.
func (s *GCSStore) Download(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Download: reading bytes: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ObjectName builds the object path for a backup taken at t, e.g.
// "backups/finance-planner_2024-03-15_10-30.json".
func ObjectName(prefix, ext string, t time.Time) string {
	name := "finance-planner_" + t.UTC().Format("2006-01-02_15-04") + "." + ext
	return path.Join(prefix, name)
}

// Backup exports the ledger and uploads it as JSON. It returns the gs:// URI.
func Backup(ctx context.Context, objects ObjectStore, bucket, prefix string, snap Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, EncodeOptions{Indent: true}); err != nil {
		return "", fmt.Errorf("Backup: %w", err)
	}
	uri, err := objects.Upload(ctx, bucket, ObjectName(prefix, "json", snap.ExportedAt), "application/json", buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("Backup: %w", err)
	}
	return uri, nil
}

// FetchBackup downloads and decodes a backup.
func FetchBackup(ctx context.Context, objects ObjectStore, gcsURI string) (Snapshot, error) {
	data, err := objects.Download(ctx, gcsURI)
	if err != nil {
		return Snapshot{}, fmt.Errorf("FetchBackup: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Ensure GCSStore implements ObjectStore.
var _ ObjectStore = (*GCSStore)(nil)
