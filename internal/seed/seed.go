// Package seed creates demo authors and posts for local development. All
// data goes through the services, so thumbnails and avatars land in the
// configured blob store exactly as they would for real uploads.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/rand"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is shared by every seeded author.
const DefaultPassword = "password123"

// Seeder pushes generated data through the user and post services.
type Seeder struct {
	db    *gorm.DB
	users *service.UserService
	posts *service.PostService
	rng   *rand.Rand
}

// NewSeeder creates a Seeder. A zero seed picks gofakeit's random source.
func NewSeeder(db *gorm.DB, users *service.UserService, posts *service.PostService, seed int64) *Seeder {
	gofakeit.Seed(seed)
	return &Seeder{
		db:    db,
		users: users,
		posts: posts,
		rng:   rand.New(rand.NewSource(gofakeit.Int64())),
	}
}

// ClearAll deletes every post through the post service, which also removes
// the thumbnails, then drops the users.
func (s *Seeder) ClearAll(ctx context.Context) error {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Find(&posts).Error; err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	for _, p := range posts {
		if err := s.posts.DeletePost(ctx, p.CreatorID, p.ID); err != nil {
			return fmt.Errorf("delete post %d: %w", p.ID, err)
		}
	}
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	middleware.Logger.InfoContext(ctx, "cleared seed data", slog.Int("posts", len(posts)))
	return nil
}

// SeedAuthors registers n authors, each with a generated avatar.
func (s *Seeder) SeedAuthors(ctx context.Context, n int) ([]*models.User, error) {
	authors := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		person := gofakeit.Person()
		email := fmt.Sprintf("%s.%s%d@example.com", person.FirstName, person.LastName, i)

		user, err := s.users.Register(ctx, service.RegisterInput{
			Name:      person.FirstName + " " + person.LastName,
			Email:     email,
			Password:  DefaultPassword,
			Password2: DefaultPassword,
		})
		if err != nil {
			return authors, fmt.Errorf("register %s: %w", email, err)
		}

		avatar, err := s.placeholder(64, 64)
		if err != nil {
			return authors, err
		}
		if user, err = s.users.ChangeAvatar(ctx, user.ID, &service.Upload{Data: avatar}); err != nil {
			return authors, fmt.Errorf("avatar for %s: %w", email, err)
		}
		authors = append(authors, user)
	}
	middleware.Logger.InfoContext(ctx, "seeded authors", slog.Int("count", len(authors)))
	return authors, nil
}

// SeedPosts creates n posts spread randomly across authors and categories.
func (s *Seeder) SeedPosts(ctx context.Context, authors []*models.User, n int) ([]*models.Post, error) {
	if len(authors) == 0 {
		return nil, fmt.Errorf("no authors to attach posts to")
	}
	created := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := authors[s.rng.Intn(len(authors))]
		thumb, err := s.placeholder(320, 180)
		if err != nil {
			return created, err
		}

		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			CreatorID:   author.ID,
			Title:       gofakeit.Sentence(5),
			Category:    models.Categories[s.rng.Intn(len(models.Categories))],
			Description: fmt.Sprintf("<p>%s</p><p>%s</p>", gofakeit.Paragraph(1, 3, 12, " "), gofakeit.HipsterParagraph(1, 2, 10, " ")),
			Thumbnail:   &service.Upload{Data: thumb},
		})
		if err != nil {
			return created, fmt.Errorf("create post for user %d: %w", author.ID, err)
		}
		created = append(created, post)
	}
	middleware.Logger.InfoContext(ctx, "seeded posts", slog.Int("count", len(created)))
	return created, nil
}

// placeholder renders a two-tone PNG.
func (s *Seeder) placeholder(w, h int) ([]byte, error) {
	top := color.RGBA{R: uint8(s.rng.Intn(256)), G: uint8(s.rng.Intn(256)), B: uint8(s.rng.Intn(256)), A: 255}
	bottom := color.RGBA{R: 255 - top.R, G: 255 - top.G, B: 255 - top.B, A: 255}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := top
		if y >= h/2 {
			c = bottom
		}
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
