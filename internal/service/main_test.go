package service

import (
	"context"
	"testing"

	"inkwell/internal/blobstore"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// harness wires the real services over SQLite and the in-memory blob store.
type harness struct {
	db       *gorm.DB
	store    *blobstore.MemoryStore
	userRepo repository.UserRepository
	postRepo repository.PostRepository
	media    *MediaCoordinator
	auth     *AuthService
	userSvc  *UserService
	postSvc  *PostService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	h := &harness{
		db:       db,
		store:    blobstore.NewMemoryStore(),
		userRepo: repository.NewUserRepository(db),
		postRepo: repository.NewPostRepository(db),
		auth:     NewAuthService(testSecret),
	}
	h.media = NewMediaCoordinator(h.store, testBase, 0, nil)
	h.userSvc = NewUserService(h.userRepo, h.media, h.auth, bcrypt.MinCost)
	h.postSvc = NewPostService(h.postRepo, h.userRepo, h.media)
	return h
}

func (h *harness) register(t *testing.T, name, email string) *models.User {
	t.Helper()
	u, err := h.userSvc.Register(context.Background(), RegisterInput{
		Name: name, Email: email, Password: "secret1", Password2: "secret1",
	})
	require.NoError(t, err)
	return u
}

func (h *harness) createPost(t *testing.T, creator uint, title string) *models.Post {
	t.Helper()
	p, err := h.postSvc.CreatePost(context.Background(), CreatePostInput{
		CreatorID:   creator,
		Title:       title,
		Category:    models.CategoryArt,
		Description: "<p>" + title + " body text</p>",
		Thumbnail:   pngUpload(t),
	})
	require.NoError(t, err)
	return p
}

func (h *harness) postCount(t *testing.T, userID uint) int {
	t.Helper()
	u, err := h.userRepo.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Posts
}

func (h *harness) livePosts(t *testing.T, userID uint) int {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.Post{}).Where("creator_id = ?", userID).Count(&n).Error)
	return int(n)
}
