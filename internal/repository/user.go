package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	IncrementPosts(ctx context.Context, id uint, delta int) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, wrapDBError(err, "Could not load user.")
	}
	return &user, nil
}

// GetByEmail looks the user up by lower-cased email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", email)
		}
		return nil, wrapDBError(err, "Could not load user.")
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.Version == 0 {
		user.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email already exists.")
		}
		return wrapDBError(err, "Could not create user.")
	}
	return nil
}

// Update writes the mutable user fields if the stored version still equals
// user.Version, then advances user.Version.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]interface{}{
			"name":       user.Name,
			"email":      user.Email,
			"password":   user.Password,
			"avatar":     user.Avatar,
			"version":    user.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return models.NewConflictError("Email already exists.")
		}
		return wrapDBError(result.Error, "Could not update user.")
	}
	cache.InvalidateUser(ctx, user.ID)
	if result.RowsAffected == 0 {
		return models.NewVersionConflictError("User")
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := page(r.db.WithContext(ctx), limit, offset).Order("id ASC").Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "Could not load authors.")
	}
	return users, nil
}

// IncrementPosts adjusts the author post counter in a single UPDATE. A
// decrement never takes the counter below zero.
func (r *userRepository) IncrementPosts(ctx context.Context, id uint, delta int) error {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("posts >= ?", -delta)
	}
	result := q.UpdateColumn("posts", gorm.Expr("posts + ?", delta))
	if result.Error != nil {
		return wrapDBError(result.Error, "Could not update post count.")
	}
	cache.InvalidateUser(ctx, id)
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}
