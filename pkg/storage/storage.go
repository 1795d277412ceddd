// Package storage abstracts where exported plan documents land. The
// export pipeline renders a document and writes it through a FileStore;
// callers pick the backend with a URL (local directory or S3-compatible
// object store) and never touch the backend APIs directly.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. The caller must close the
	// returned ReadCloser. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating any previous
	// content. The caller must close the returned WriteCloser to flush.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting a missing file is a no-op.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Open returns the store addressed by a storage URL:
//
//	file:exports/plans     directory relative to the working directory
//	file:///var/plans      absolute directory
//	plain/dir              same as file:
//	s3://bucket/prefix     S3-compatible object store
//
// S3 credentials come from the usual environment variables
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, optionally AWS_REGION,
// AWS_SESSION_TOKEN and AWS_ENDPOINT_URL for MinIO/R2 style endpoints).
func Open(rawURL string) (FileStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("storage: parse url %s: %w", rawURL, err)
	}
	switch u.Scheme {
	case "", "file":
		dir := u.Opaque
		if dir == "" {
			dir = u.Path
		}
		if dir == "" {
			return nil, fmt.Errorf("storage: empty path in %s", rawURL)
		}
		return NewLocal(dir)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("storage: missing bucket in %s", rawURL)
		}
		client, err := s3FromEnv()
		if err != nil {
			return nil, err
		}
		return NewS3(client, u.Host, strings.Trim(u.Path, "/")), nil
	default:
		return nil, fmt.Errorf("storage: unsupported scheme %s", u.Scheme)
	}
}

// s3FromEnv builds an S3 client from the standard AWS environment.
func s3FromEnv() (*s3.Client, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return nil, fmt.Errorf("storage: s3 needs AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region: region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: secret,
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		}),
	}
	if ep := os.Getenv("AWS_ENDPOINT_URL"); ep != "" {
		opts.BaseEndpoint = aws.String(ep)
		opts.UsePathStyle = true
	}
	return s3.New(opts), nil
}

// WriteFile writes data to path through the store in one call.
func WriteFile(ctx context.Context, store FileStore, path string, data []byte) error {
	w, err := store.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
