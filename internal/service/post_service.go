package service

import (
	"context"
	"log/slog"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	media    *MediaCoordinator
	logger   *slog.Logger
}

type CreatePostInput struct {
	CreatorID   uint
	Title       string
	Category    string
	Description string
	Thumbnail   *Upload
}

type UpdatePostInput struct {
	RequesterID uint
	PostID      uint
	Title       string
	Category    string
	Description string
	// Thumbnail is optional; nil keeps the current one.
	Thumbnail *Upload
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, media *MediaCoordinator) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		media:    media,
		logger:   media.logger,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	category := strings.TrimSpace(in.Category)
	description := strings.TrimSpace(in.Description)
	if title == "" || category == "" || description == "" || in.Thumbnail == nil {
		return nil, models.NewValidationError("Fill in all fields and choose thumbnail.")
	}
	if !models.IsValidCategory(category) {
		return nil, models.NewValidationError("Invalid category.")
	}

	post := &models.Post{
		Title:       title,
		Category:    category,
		Description: description,
		CreatorID:   in.CreatorID,
	}
	_, err := s.media.CreateWithBlob(ctx, in.Thumbnail, PostThumbnailPolicy, func(ctx context.Context, ref models.BlobRef) error {
		post.Thumbnail = ref.URL
		return s.postRepo.Create(ctx, post)
	})
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.IncrementPosts(ctx, post.CreatorID, 1); err != nil {
		s.logger.ErrorContext(ctx, "failed to increment author post count",
			slog.Uint64("user_id", uint64(post.CreatorID)),
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("error", err.Error()),
		)
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.postRepo.List(ctx, limit, offset)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) ListByCategory(ctx context.Context, category string, limit, offset int) ([]models.Post, error) {
	return s.postRepo.ListByCategory(ctx, category, limit, offset)
}

func (s *PostService) ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]models.Post, error) {
	return s.postRepo.ListByCreator(ctx, creatorID, limit, offset)
}

// UpdatePost edits the post's fields and optionally replaces its thumbnail.
// Only the creator may edit.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	category := strings.TrimSpace(in.Category)
	description := strings.TrimSpace(in.Description)
	if title == "" || category == "" || !validation.HasDescriptionContent(description) {
		return nil, models.NewValidationError("Fill in all fields.")
	}
	if !models.IsValidCategory(category) {
		return nil, models.NewValidationError("Invalid category.")
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if in.RequesterID == 0 || post.CreatorID != in.RequesterID {
		return nil, models.NewForbiddenError("Post couldn't be updated.")
	}

	post.Title = title
	post.Category = category
	post.Description = description

	err = s.media.ReplaceBlob(ctx, post, in.Thumbnail, PostThumbnailPolicy, func(ctx context.Context, _ *models.BlobRef) error {
		return s.postRepo.Update(ctx, post)
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes the post and its thumbnail, then decrements the
// creator's post count.
func (s *PostService) DeletePost(ctx context.Context, requesterID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	return s.media.DeleteWithBlob(ctx, post, requesterID, PostThumbnailPolicy, func(ctx context.Context) error {
		if err := s.postRepo.Delete(ctx, post.ID); err != nil {
			return err
		}
		if err := s.userRepo.IncrementPosts(ctx, post.CreatorID, -1); err != nil {
			s.logger.ErrorContext(ctx, "failed to decrement author post count",
				slog.Uint64("user_id", uint64(post.CreatorID)),
				slog.Uint64("post_id", uint64(post.ID)),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
}
