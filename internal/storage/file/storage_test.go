package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		subdir, filename, want string
	}{
		{DirOriginal, "leaf.jpg", "original/leaf.jpg"},
		{DirNormalized, "3f2a.jpg", "normalized/3f2a.jpg"},
		{DirPreviews, "../../etc/passwd", "previews/passwd"},
		{DirOriginal, "dir/inner.png", "original/inner.png"},
	}

	for _, tt := range tests {
		if got := ObjectName(tt.subdir, tt.filename); got != tt.want {
			t.Errorf("ObjectName(%q, %q): expected %q, got %q", tt.subdir, tt.filename, tt.want, got)
		}
	}
}

// fakeS3 serves a single object and answers NoSuchKey for everything else.
func fakeS3(t *testing.T, bucket, key, body string) *Storage {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bucket+"/"+key {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message>`+
					`<Key>%s</Key><BucketName>%s</BucketName></Error>`, strings.TrimPrefix(r.URL.Path, "/"+bucket+"/"), bucket)
			}
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		if r.Method != http.MethodHead {
			io.WriteString(w, body)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("key", "secret", ""),
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return &Storage{client: client, bucketName: bucket}
}

func TestLoad_MissingObject(t *testing.T) {
	s := fakeS3(t, "photos", "previews/a.jpg", "jpeg")

	rc, err := s.Load(context.Background(), "previews/missing.jpg")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound before any read, got %v", err)
	}
	if rc != nil {
		t.Error("expected no reader for a missing object")
	}
}

func TestLoad_ExistingObject(t *testing.T) {
	s := fakeS3(t, "photos", "previews/a.jpg", "jpeg bytes")

	rc, err := s.Load(context.Background(), "previews/a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read object: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("expected object content, got %q", data)
	}
}
