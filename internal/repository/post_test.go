package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuthor(t *testing.T, users UserRepository) *models.User {
	t.Helper()
	u := &models.User{Name: "Author", Email: "author@example.com", Password: "hash"}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestPostRepository_UpdateVersionConflictSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "posts" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), &models.Post{ID: 4, Title: "t", Version: 3})
	assert.True(t, models.HasCode(err, models.CodeVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_DeleteMissingSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "posts" WHERE "posts"."id" = $1`)).
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 42)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Queries(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	author := seedAuthor(t, NewUserRepository(db))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	fixtures := []models.Post{
		{Title: "One", Category: models.CategoryBusiness, Description: "first post body", CreatorID: author.ID, CreatedAt: base, UpdatedAt: base.Add(3 * time.Minute)},
		{Title: "Two", Category: models.CategoryArt, Description: "second post body", CreatorID: author.ID, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)},
		{Title: "Three", Category: models.CategoryBusiness, Description: "third post body", CreatorID: author.ID + 1, CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
	}
	for i := range fixtures {
		require.NoError(t, posts.Create(ctx, &fixtures[i]))
	}

	t.Run("list orders by last update", func(t *testing.T) {
		all, err := posts.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"One", "Three", "Two"}, titles(all))
	})

	t.Run("category orders by creation", func(t *testing.T) {
		got, err := posts.ListByCategory(ctx, models.CategoryBusiness, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"Three", "One"}, titles(got))

		none, err := posts.ListByCategory(ctx, models.CategoryWeather, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("creator listing", func(t *testing.T) {
		got, err := posts.ListByCreator(ctx, author.ID, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"Two"}, titles(got))
	})
}

func TestPostRepository_UpdateAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	author := seedAuthor(t, NewUserRepository(db))
	ctx := context.Background()

	post := &models.Post{Title: "Draft", Category: models.CategoryArt, Description: "some long description", CreatorID: author.ID}
	require.NoError(t, posts.Create(ctx, post))
	assert.Equal(t, uint(1), post.Version)

	post.Title = "Final"
	require.NoError(t, posts.Update(ctx, post))
	assert.Equal(t, uint(2), post.Version)

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)

	require.NoError(t, posts.Delete(ctx, post.ID))
	_, err = posts.GetByID(ctx, post.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	assert.True(t, models.HasCode(posts.Delete(ctx, post.ID), models.CodeNotFound))
}

func TestPostRepository_GetByIDUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	author := seedAuthor(t, NewUserRepository(db))
	ctx := context.Background()

	post := &models.Post{Title: "Cached", Category: models.CategoryArt, Description: "cached description", CreatorID: author.ID}
	require.NoError(t, posts.Create(ctx, post))

	_, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	post.Title = "Renamed"
	require.NoError(t, posts.Update(ctx, post))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)), "update must invalidate the cached post")

	got, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
}

func titles(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}
