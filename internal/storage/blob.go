// Package storage fetches recordings and transcripts from the blob
// store by URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("blob not found")

type BlobStore struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func New(opts Options, logger *slog.Logger) (*BlobStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob client: %w", err)
	}
	return &BlobStore{client: client, bucket: opts.Bucket, log: logger}, nil
}

// FetchContent downloads the blob a report URL points at. The object
// key is the URL path, with the bucket prefix stripped when present.
func (b *BlobStore) FetchContent(ctx context.Context, rawURL string) ([]byte, error) {
	key, err := b.objectKey(rawURL)
	if err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			b.log.Error("blob missing", slog.String("url", rawURL))
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return content, nil
}

func (b *BlobStore) objectKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse blob url %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, b.bucket+"/")
	if key == "" {
		return "", fmt.Errorf("blob url %q has no object path", rawURL)
	}
	return key, nil
}
