package service

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"inkwell/internal/blobstore"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://media.example.test/"

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func newTestCoordinator(t *testing.T) (*MediaCoordinator, *blobstore.MemoryStore, *bytes.Buffer) {
	t.Helper()
	store := blobstore.NewMemoryStore()
	logs := &bytes.Buffer{}
	return NewMediaCoordinator(store, testBase, time.Second, middleware.NewLogger(logs, "production")), store, logs
}

func pngUpload(t *testing.T) *Upload {
	t.Helper()
	return &Upload{Data: testutil.TinyPNG(t, 4, 4)}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.HasCode(err, code), "expected %s, got %v", code, err)
}

// seedBlob stores an object directly and returns a holder pointing at it.
func seedBlob(t *testing.T, store *blobstore.MemoryStore, owner uint) (*models.Post, string) {
	t.Helper()
	key, err := blobstore.NewKey()
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key, []byte("old"), "image/png", true))
	return &models.Post{ID: 1, CreatorID: owner, Thumbnail: blobstore.PublicURL(testBase, key)}, key
}

func TestMediaCoordinator_Validate(t *testing.T) {
	m, _, _ := newTestCoordinator(t)

	tests := []struct {
		name    string
		upload  *Upload
		policy  MediaPolicy
		wantErr string
		wantCT  string
	}{
		{name: "missing", upload: nil, policy: PostThumbnailPolicy, wantErr: PostThumbnailPolicy.MissingMessage},
		{name: "empty", upload: &Upload{}, policy: AvatarPolicy, wantErr: AvatarPolicy.MissingMessage},
		{name: "thumbnail too big", upload: &Upload{Data: testutil.PaddedPNG(t, MaxThumbnailBytes+1)}, policy: PostThumbnailPolicy, wantErr: PostThumbnailPolicy.TooLargeMessage},
		{name: "avatar too big", upload: &Upload{Data: testutil.PaddedPNG(t, MaxAvatarBytes+1)}, policy: AvatarPolicy, wantErr: AvatarPolicy.TooLargeMessage},
		{name: "avatar at limit", upload: &Upload{Data: testutil.PaddedPNG(t, MaxAvatarBytes)}, policy: AvatarPolicy, wantCT: "image/png"},
		{name: "not an image", upload: &Upload{Data: []byte("hello, world")}, policy: PostThumbnailPolicy, wantErr: "Invalid image type. Use JPEG, PNG, GIF or WebP."},
		{name: "truncated png", upload: &Upload{Data: testutil.TinyPNG(t, 4, 4)[:20]}, policy: PostThumbnailPolicy, wantErr: "Invalid image file."},
		{name: "jpeg", upload: &Upload{Data: testutil.TinyJPEG(t, 4, 4)}, policy: PostThumbnailPolicy, wantCT: "image/jpeg"},
		{name: "webp", upload: &Upload{Data: testutil.TinyWebP(t, 4, 4)}, policy: PostThumbnailPolicy, wantCT: "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := m.Validate(tt.upload, tt.policy)
			if tt.wantErr != "" {
				assertCode(t, err, models.CodeValidation)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCT, ct)
		})
	}
}

func TestMediaCoordinator_CreateWithBlob(t *testing.T) {
	t.Run("stores blob and persists its public URL", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		upload := pngUpload(t)

		var persisted models.BlobRef
		ref, err := m.CreateWithBlob(context.Background(), upload, PostThumbnailPolicy, func(_ context.Context, ref models.BlobRef) error {
			persisted = ref
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, ref, persisted)
		assert.Regexp(t, keyPattern, ref.Key)
		assert.Equal(t, testBase+ref.Key, ref.URL)

		obj, ok := store.Get(ref.Key)
		require.True(t, ok)
		assert.Equal(t, upload.Data, obj.Data)
		assert.Equal(t, "image/png", obj.ContentType)
		assert.True(t, obj.PublicRead)

		key, ok := blobstore.KeyFromURL(testBase, ref.URL)
		require.True(t, ok)
		assert.Equal(t, ref.Key, key)
	})

	t.Run("oversized upload performs no writes", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		called := false
		_, err := m.CreateWithBlob(context.Background(), &Upload{Data: testutil.PaddedPNG(t, MaxThumbnailBytes+1)}, PostThumbnailPolicy,
			func(context.Context, models.BlobRef) error { called = true; return nil })

		assertCode(t, err, models.CodeValidation)
		assert.False(t, called)
		puts, deletes := store.Calls()
		assert.Zero(t, puts)
		assert.Zero(t, deletes)
	})

	t.Run("put failure persists nothing", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		store.FailPuts(errors.New("bucket unavailable"))
		called := false
		_, err := m.CreateWithBlob(context.Background(), pngUpload(t), PostThumbnailPolicy,
			func(context.Context, models.BlobRef) error { called = true; return nil })

		assertCode(t, err, models.CodeStorage)
		assert.False(t, called)
		assert.Empty(t, store.Keys())
	})

	t.Run("persist failure orphans the blob and logs its key", func(t *testing.T) {
		m, store, logs := newTestCoordinator(t)
		before := promtest.ToFloat64(observability.MediaInconsistencies.WithLabelValues("orphan"))

		_, err := m.CreateWithBlob(context.Background(), pngUpload(t), PostThumbnailPolicy,
			func(context.Context, models.BlobRef) error { return errors.New("connection reset") })

		assertCode(t, err, models.CodePersistence)
		keys := store.Keys()
		require.Len(t, keys, 1)
		assert.Contains(t, logs.String(), `"level":"WARN"`)
		assert.Contains(t, logs.String(), keys[0])
		assert.Equal(t, before+1, promtest.ToFloat64(observability.MediaInconsistencies.WithLabelValues("orphan")))
	})

	t.Run("application errors from persist pass through", func(t *testing.T) {
		m, _, _ := newTestCoordinator(t)
		_, err := m.CreateWithBlob(context.Background(), pngUpload(t), PostThumbnailPolicy,
			func(context.Context, models.BlobRef) error { return models.NewConflictError("taken") })
		assertCode(t, err, models.CodeConflict)
	})
}

func TestMediaCoordinator_ReplaceBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("no upload leaves the store untouched", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, oldKey := seedBlob(t, store, 1)
		called := false

		err := m.ReplaceBlob(ctx, holder, nil, PostThumbnailPolicy, func(_ context.Context, ref *models.BlobRef) error {
			called = true
			assert.Nil(t, ref)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.Equal(t, []string{oldKey}, store.Keys())
		puts, deletes := store.Calls()
		assert.Equal(t, 1, puts)
		assert.Zero(t, deletes)
	})

	t.Run("swaps old blob for new", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, oldKey := seedBlob(t, store, 1)

		var persisted *models.BlobRef
		err := m.ReplaceBlob(ctx, holder, pngUpload(t), PostThumbnailPolicy, func(_ context.Context, ref *models.BlobRef) error {
			persisted = ref
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, persisted)

		_, oldExists := store.Get(oldKey)
		assert.False(t, oldExists)
		_, newExists := store.Get(persisted.Key)
		assert.True(t, newExists)
		assert.Equal(t, persisted.URL, holder.Thumbnail)
		assert.Equal(t, []string{persisted.Key}, store.Keys())
	})

	t.Run("old blob delete failure aborts", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, oldKey := seedBlob(t, store, 1)
		oldURL := holder.Thumbnail
		store.FailDeletes(errors.New("access denied"))
		called := false

		err := m.ReplaceBlob(ctx, holder, pngUpload(t), PostThumbnailPolicy,
			func(context.Context, *models.BlobRef) error { called = true; return nil })

		assertCode(t, err, models.CodeStorage)
		assert.False(t, called)
		assert.Equal(t, oldURL, holder.Thumbnail)
		assert.Equal(t, []string{oldKey}, store.Keys())
		puts, _ := store.Calls()
		assert.Equal(t, 1, puts, "only the seed put")
	})

	t.Run("missing old blob is treated as removed", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder := &models.Post{CreatorID: 1, Thumbnail: testBase + "deadbeef"}

		err := m.ReplaceBlob(ctx, holder, pngUpload(t), PostThumbnailPolicy,
			func(context.Context, *models.BlobRef) error { return nil })
		require.NoError(t, err)
		assert.Len(t, store.Keys(), 1)
	})

	t.Run("holder without blob skips the delete", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		user := &models.User{ID: 3}

		err := m.ReplaceBlob(ctx, user, pngUpload(t), AvatarPolicy,
			func(context.Context, *models.BlobRef) error { return nil })
		require.NoError(t, err)
		_, deletes := store.Calls()
		assert.Zero(t, deletes)
		assert.Contains(t, user.Avatar, testBase)
	})

	t.Run("foreign URL is not deleted", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		user := &models.User{ID: 3, Avatar: "https://cdn.elsewhere.test/me.png"}

		require.NoError(t, m.ReplaceBlob(ctx, user, pngUpload(t), AvatarPolicy,
			func(context.Context, *models.BlobRef) error { return nil }))
		_, deletes := store.Calls()
		assert.Zero(t, deletes)
	})

	t.Run("upload failure after delete leaves a stale reference", func(t *testing.T) {
		m, store, logs := newTestCoordinator(t)
		holder, oldKey := seedBlob(t, store, 1)
		before := promtest.ToFloat64(observability.MediaInconsistencies.WithLabelValues("stale"))
		store.FailPuts(errors.New("throttled"))

		err := m.ReplaceBlob(ctx, holder, pngUpload(t), PostThumbnailPolicy,
			func(context.Context, *models.BlobRef) error { return nil })

		assertCode(t, err, models.CodeStorage)
		assert.Empty(t, store.Keys())
		assert.Contains(t, logs.String(), oldKey)
		assert.Equal(t, before+1, promtest.ToFloat64(observability.MediaInconsistencies.WithLabelValues("stale")))
	})

	t.Run("persist failure restores the holder URL", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, _ := seedBlob(t, store, 1)
		oldURL := holder.Thumbnail

		err := m.ReplaceBlob(ctx, holder, pngUpload(t), PostThumbnailPolicy,
			func(context.Context, *models.BlobRef) error { return models.NewVersionConflictError("Post") })

		assertCode(t, err, models.CodeVersionConflict)
		assert.Equal(t, oldURL, holder.Thumbnail)
		assert.Len(t, store.Keys(), 1, "new blob is orphaned")
	})

	t.Run("invalid upload touches nothing", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, oldKey := seedBlob(t, store, 1)

		err := m.ReplaceBlob(ctx, holder, &Upload{Data: []byte("text")}, PostThumbnailPolicy,
			func(context.Context, *models.BlobRef) error { return nil })
		assertCode(t, err, models.CodeValidation)
		assert.Equal(t, []string{oldKey}, store.Keys())
	})
}

func TestMediaCoordinator_DeleteWithBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("non owner is forbidden", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, oldKey := seedBlob(t, store, 1)
		called := false

		err := m.DeleteWithBlob(ctx, holder, 2, PostThumbnailPolicy, func(context.Context) error { called = true; return nil })
		assertCode(t, err, models.CodeForbidden)
		assert.Equal(t, "Post couldn't be deleted.", err.Error())
		assert.False(t, called)
		assert.Equal(t, []string{oldKey}, store.Keys())
	})

	t.Run("blob failure keeps the record", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, _ := seedBlob(t, store, 1)
		store.FailDeletes(errors.New("timeout"))
		called := false

		err := m.DeleteWithBlob(ctx, holder, 1, PostThumbnailPolicy, func(context.Context) error { called = true; return nil })
		assertCode(t, err, models.CodeStorage)
		assert.False(t, called)
	})

	t.Run("removes blob then record", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, _ := seedBlob(t, store, 1)
		called := false

		err := m.DeleteWithBlob(ctx, holder, 1, PostThumbnailPolicy, func(context.Context) error {
			called = true
			assert.Empty(t, store.Keys(), "blob must be gone before the record")
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("record failure after blob delete", func(t *testing.T) {
		m, store, _ := newTestCoordinator(t)
		holder, _ := seedBlob(t, store, 1)

		err := m.DeleteWithBlob(ctx, holder, 1, PostThumbnailPolicy, func(context.Context) error { return errors.New("db down") })
		assertCode(t, err, models.CodePersistence)
	})
}

type blockingStore struct{}

func (blockingStore) Put(ctx context.Context, _ string, _ []byte, _ string, _ bool) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestMediaCoordinator_BlobCallTimeout(t *testing.T) {
	m := NewMediaCoordinator(blockingStore{}, testBase, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := m.CreateWithBlob(context.Background(), pngUpload(t), PostThumbnailPolicy,
		func(context.Context, models.BlobRef) error { return nil })

	assertCode(t, err, models.CodeStorage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
