//go:build integration

package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"iris-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Provider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider := createS3Provider(t, ctx)
	require.NoError(t, provider.CreateBucket(ctx, modelBucket))
	// creating an existing bucket is not an error
	require.NoError(t, provider.CreateBucket(ctx, modelBucket))

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, provider.PutObject(ctx, modelBucket, "a/file.txt", strings.NewReader("hello")))

		data, err := provider.GetObject(ctx, modelBucket, "a/file.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		_, err = provider.GetObject(ctx, modelBucket, "a/missing.txt")
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})

	t.Run("upload and download", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "model.bst")
		require.NoError(t, os.WriteFile(src, []byte("artifact bytes"), 0o644))
		require.NoError(t, storage.UploadFile(ctx, provider, modelBucket, "b/model_artifacts/model.bst", src))

		dst := filepath.Join(t.TempDir(), "nested", "model.bst")
		require.NoError(t, provider.DownloadObject(ctx, modelBucket, "b/model_artifacts/model.bst", dst))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "artifact bytes", string(data))
	})

	t.Run("list and delete", func(t *testing.T) {
		for _, key := range []string{"c/1.txt", "c/2.txt", "c/sub/3.txt", "d/4.txt"} {
			require.NoError(t, provider.PutObject(ctx, modelBucket, key, strings.NewReader(key)))
		}

		objs, err := provider.ListObjects(ctx, modelBucket, "c/")
		require.NoError(t, err)
		names := make([]string, 0, len(objs))
		for _, obj := range objs {
			names = append(names, obj.Name)
		}
		assert.ElementsMatch(t, []string{"c/1.txt", "c/2.txt", "c/sub/3.txt"}, names)

		require.NoError(t, provider.DeleteObjects(ctx, modelBucket, "c/"))

		objs, err = provider.ListObjects(ctx, modelBucket, "c/")
		require.NoError(t, err)
		assert.Empty(t, objs)

		objs, err = provider.ListObjects(ctx, modelBucket, "d/")
		require.NoError(t, err)
		assert.Len(t, objs, 1)
	})

	assert.Equal(t, "s3", storage.Scheme(provider))
}
