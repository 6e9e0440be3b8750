package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrObjectNotFound = errors.New("object not found")

type Object struct {
	Name string
	Size int64
}

type ObjectIterator func(yield func(obj Object, err error) bool)

type Provider interface {
	CreateBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	DownloadObject(ctx context.Context, bucket, key, filename string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)

	IterObjects(ctx context.Context, bucket, prefix string) ObjectIterator

	DeleteObjects(ctx context.Context, bucket, prefix string) error
}

func UploadFile(ctx context.Context, p Provider, bucket, key, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", filename, err)
	}
	defer file.Close()

	return p.PutObject(ctx, bucket, key, file)
}

// URI formats a bucket and key the way they are shown to users and stored on
// model records.
func URI(scheme, bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, bucket, key)
}

// Scheme is the URI scheme used to display objects held by p.
func Scheme(p Provider) string {
	switch p.(type) {
	case *S3Provider:
		return "s3"
	case *LocalProvider:
		return "file"
	default:
		return "object"
	}
}
