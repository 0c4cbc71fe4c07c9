package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObjectStore is a mock implementation of ObjectStore for testing.
type MockObjectStore struct {
	objects map[string][]byte

	UploadFunc func(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)
}

func (m *MockObjectStore) Upload(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, bucket, object, contentType, data)
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	uri := "gs://" + bucket + "/" + object
	m.objects[uri] = data
	return uri, nil
}

func (m *MockObjectStore) Download(ctx context.Context, gcsURI string) ([]byte, error) {
	data, ok := m.objects[gcsURI]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{uri: "gs://bucket/backups/a.json", wantBucket: "bucket", wantObject: "backups/a.json"},
		{uri: "gs://bucket/a.json", wantBucket: "bucket", wantObject: "a.json"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "s3://bucket/a.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestObjectName(t *testing.T) {
	got := ObjectName("backups", "json", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, "backups/finance-planner_2024-03-15_10-30.json", got)
}

func TestBackupAndFetch(t *testing.T) {
	ctx := context.Background()
	objects := &MockObjectStore{}
	snap := FromLedger(sampleLedger(), time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), EncodeOptions{})

	uri, err := Backup(ctx, objects, "bucket", "backups", snap)
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/backups/finance-planner_2024-03-15_10-30.json", uri)

	fetched, err := FetchBackup(ctx, objects, uri)
	require.NoError(t, err)
	assert.Len(t, fetched.Transactions, 1)
	assert.Len(t, fetched.PlannedPayments, 1)
}

func TestBackupUploadError(t *testing.T) {
	objects := &MockObjectStore{UploadFunc: func(context.Context, string, string, string, []byte) (string, error) {
		return "", errors.New("permission denied")
	}}
	_, err := Backup(context.Background(), objects, "bucket", "", FromLedger(Ledger{}, time.Now(), EncodeOptions{}))
	assert.Error(t, err)
}
