package ps

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nickyhof/DuckServe/core"
)

// memoryStore is an in-memory stand-in for an S3 bucket.
type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryStore) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url    string
		bucket string
		prefix string
		ok     bool
	}{
		{"s3://bucket", "bucket", "", true},
		{"s3://bucket/", "bucket", "", true},
		{"s3://bucket/bundles/prod/", "bucket", "bundles/prod", true},
		{"S3://bucket/x", "bucket", "x", true},
		{"s3://", "", "", false},
		{"https://bucket/x", "", "", false},
	}

	for _, tt := range tests {
		bucket, prefix, err := parseS3URL(tt.url)
		if (err == nil) != tt.ok {
			t.Errorf("%s: unexpected error state: %v", tt.url, err)
			continue
		}
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("%s: expected %s/%s, got %s/%s", tt.url, tt.bucket, tt.prefix, bucket, prefix)
		}
	}
}

func TestRemotePushPull(t *testing.T) {
	store := newMemoryStore()
	remote := NewRemoteWithStore(store, "bucket", "bundles")
	ctx := context.Background()

	source, _ := OpenBundle(t.TempDir(), "flights")
	source.Ensure()
	manifest := core.NewManifest()
	manifest.AddTable("flights")
	key := core.KeyFor("SELECT 1", core.ArrowFormat)
	manifest.AddQuery(key)
	source.WriteFile("flights.parquet", []byte("parquet bytes"))
	source.WriteFile(string(key), []byte("arrow bytes"))
	source.WriteManifest(manifest)

	if err := remote.Push(ctx, source, manifest); err != nil {
		t.Fatalf("Failed to push: %v", err)
	}
	if _, ok := store.objects["bucket/bundles/flights/bundle.json"]; !ok {
		t.Error("Expected manifest to be uploaded")
	}

	target, _ := OpenBundle(t.TempDir(), "flights")
	pulled, err := remote.Pull(ctx, target)
	if err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}
	if len(pulled.Tables) != 1 || len(pulled.Queries) != 1 {
		t.Errorf("Unexpected manifest: %v", pulled)
	}
	if !target.Exists() {
		t.Error("Expected pulled bundle to exist locally")
	}
	data, err := target.ReadFile(string(key))
	if err != nil || string(data) != "arrow bytes" {
		t.Errorf("Unexpected artifact: %q, %v", data, err)
	}
}

func TestRemotePullMissingBundle(t *testing.T) {
	remote := NewRemoteWithStore(newMemoryStore(), "bucket", "")
	target, _ := OpenBundle(t.TempDir(), "missing")

	_, err := remote.Pull(context.Background(), target)
	if core.KindOf(err) != core.RemoteError {
		t.Errorf("Expected remote error, got %v", err)
	}
	if target.Exists() {
		t.Error("Expected no local bundle after failed pull")
	}
}

func TestRemoteString(t *testing.T) {
	if got := NewRemoteWithStore(nil, "b", "p/q").String(); got != "s3://b/p/q" {
		t.Errorf("Unexpected remote string: %s", got)
	}
}
