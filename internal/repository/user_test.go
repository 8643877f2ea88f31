package repository

import (
	"context"
	"regexp"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "name", "email", "posts"}).
					AddRow(1, "Ada", "ada@example.com", 3)
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Driver Failure",
			userID: 5,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WillReturnError(assert.AnError)
			},
			expectedCode: models.CodePersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.HasCode(err, tt.expectedCode), "got %v", err)
				assert.Nil(t, user)
			} else if assert.NoError(t, err) {
				assert.Equal(t, "Ada", user.Name)
				assert.Equal(t, 3, user.Posts)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Name: "Ada", Email: "ada@example.com", Password: "x"})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.Equal(t, "Email already exists.", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_IncrementPostsSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "posts"=posts \+ \$1 WHERE id = \$2 AND posts >= \$3`).
		WithArgs(-1, 7, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.IncrementPosts(context.Background(), 7, -1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Lifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Name: "Ada", Email: "ada@example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, uint(1), user.Version)

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Name: "Other", Email: "ada@example.com", Password: "hash"})
		assert.True(t, models.HasCode(err, models.CodeConflict))
	})

	t.Run("lookup by email is case insensitive", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "  ADA@example.com ")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.True(t, models.HasCode(err, models.CodeNotFound))
	})

	t.Run("update bumps version and rejects stale writes", func(t *testing.T) {
		stale := *user
		user.Name = "Ada L."
		require.NoError(t, repo.Update(ctx, user))
		assert.Equal(t, uint(2), user.Version)

		stale.Name = "Lost"
		err := repo.Update(ctx, &stale)
		assert.True(t, models.HasCode(err, models.CodeVersionConflict))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada L.", got.Name)
		assert.Equal(t, uint(2), got.Version)
	})

	t.Run("post counter never goes negative", func(t *testing.T) {
		require.NoError(t, repo.IncrementPosts(ctx, user.ID, 1))
		require.NoError(t, repo.IncrementPosts(ctx, user.ID, -1))

		err := repo.IncrementPosts(ctx, user.ID, -1)
		assert.True(t, models.HasCode(err, models.CodeNotFound))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Posts)
	})

	t.Run("list pages by id", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, &models.User{Name: "Bo", Email: "bo@example.com", Password: "hash"}))
		all, err := repo.List(ctx, 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		second, err := repo.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, "Bo", second[0].Name)
	})
}
