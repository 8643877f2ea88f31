package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	ListByCategory(ctx context.Context, category string, limit, offset int) ([]models.Post, error)
	ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.Version == 0 {
		post.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return wrapDBError(err, "Could not create post.")
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return wrapDBError(err, "Could not load post.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := page(r.db.WithContext(ctx), limit, offset).
		Order("updated_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, wrapDBError(err, "Could not load posts.")
	}
	return posts, nil
}

func (r *postRepository) ListByCategory(ctx context.Context, category string, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := page(r.db.WithContext(ctx), limit, offset).
		Where("category = ?", category).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, wrapDBError(err, "Could not load posts.")
	}
	return posts, nil
}

func (r *postRepository) ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := page(r.db.WithContext(ctx), limit, offset).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, wrapDBError(err, "Could not load posts.")
	}
	return posts, nil
}

// Update writes the editable post fields if the stored version still equals
// post.Version, then advances post.Version.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND version = ?", post.ID, post.Version).
		Updates(map[string]interface{}{
			"title":       post.Title,
			"category":    post.Category,
			"description": post.Description,
			"thumbnail":   post.Thumbnail,
			"version":     post.Version + 1,
			"updated_at":  now,
		})
	if result.Error != nil {
		return wrapDBError(result.Error, "Could not update post.")
	}
	cache.InvalidatePost(ctx, post.ID)
	if result.RowsAffected == 0 {
		return models.NewVersionConflictError("Post")
	}

	post.Version++
	post.UpdatedAt = now
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if result.Error != nil {
		return wrapDBError(result.Error, "Could not delete post.")
	}
	cache.InvalidatePost(ctx, id)
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
