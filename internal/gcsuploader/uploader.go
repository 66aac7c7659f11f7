package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ObjectStore writes and reads report objects.
type ObjectStore interface {
	// UploadBytes writes data to bucket/object and returns its gs:// URI.
	UploadBytes(ctx context.Context, bucket, object, contentType string, data []byte) (string, error)

	// FetchFromGCS downloads the object behind a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Client is the Cloud Storage implementation of ObjectStore. It relies on
// Application Default Credentials unless options say otherwise.
type Client struct {
	client *storage.Client
}

// NewClient opens a Cloud Storage client.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create storage client: %w", err)
	}
	return &Client{client: client}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}

// UploadBytes implements ObjectStore.
func (c *Client) UploadBytes(ctx context.Context, bucket, object, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadBytes: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadBytes: finalize upload: %w", err)
	}
	return GCSURI(bucket, object), nil
}

// GCSURI formats a gs:// URI.
func GCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
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

var _ ObjectStore = (*Client)(nil)
