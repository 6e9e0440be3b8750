package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider maps bucket/key onto baseDir/bucket/key. Pointed at a bucket
// mount it behaves like the mounted bucket.
type LocalProvider struct {
	baseDir string
}

func (p *LocalProvider) fullpath(bucket, key string) string {
	return filepath.Join(p.baseDir, bucket, key)
}

var _ Provider = &LocalProvider{}

func NewLocalProvider(dir string) (*LocalProvider, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	return &LocalProvider{baseDir: baseDir}, nil
}

func (p *LocalProvider) BaseDir() string {
	return p.baseDir
}

func (p *LocalProvider) CreateBucket(ctx context.Context, bucket string) error {
	if err := os.MkdirAll(filepath.Join(p.baseDir, bucket), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create bucket directory %s: %w", bucket, err)
	}
	return nil
}

func (p *LocalProvider) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(p.fullpath(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to read file %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (p *LocalProvider) DownloadObject(ctx context.Context, bucket, key, filename string) error {
	src, err := os.Open(p.fullpath(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return fmt.Errorf("failed to open file %s/%s: %w", bucket, key, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for download %s: %w", filepath.Dir(filename), err)
	}

	dst, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filename, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s: %w", bucket, key, filename, err)
	}
	return nil
}

// PutObject writes through a temp file and rename so a concurrent reader never
// sees a partially written object.
func (p *LocalProvider) PutObject(ctx context.Context, bucket, key string, data io.Reader) error {
	path := p.fullpath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", bucket, key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file %s/%s: %w", bucket, key, err)
	}

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file %s/%s: %w", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close file %s/%s: %w", bucket, key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (p *LocalProvider) ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	for obj, err := range p.IterObjects(ctx, bucket, prefix) {
		if err != nil {
			return nil, fmt.Errorf("failed to list files in %s/%s: %w", bucket, prefix, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// IterObjects walks every file under bucket whose key starts with prefix.
func (p *LocalProvider) IterObjects(ctx context.Context, bucket, prefix string) ObjectIterator {
	return func(yield func(obj Object, err error) bool) {
		root := filepath.Join(p.baseDir, bucket)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() || strings.Contains(d.Name(), ".tmp-") {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if !strings.HasPrefix(key, prefix) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			if !yield(Object{Name: key, Size: info.Size()}, nil) {
				return io.EOF
			}
			return nil
		})

		if err != nil && !errors.Is(err, io.EOF) {
			yield(Object{}, err)
		}
	}
}

func (p *LocalProvider) DeleteObjects(ctx context.Context, bucket, prefix string) error {
	var keys []string
	for obj, err := range p.IterObjects(ctx, bucket, prefix) {
		if err != nil {
			return fmt.Errorf("failed to list files to delete in %s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, obj.Name)
	}

	for _, key := range keys {
		if err := os.Remove(p.fullpath(bucket, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}
