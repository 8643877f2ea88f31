package server

import (
	"fmt"

	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts (multipart, field "thumbnail")
func (s *Server) CreatePost(c *fiber.Ctx) error {
	thumbnail, err := readUpload(c, "thumbnail")
	if err != nil {
		return respondServiceError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		CreatorID:   currentUserID(c),
		Title:       c.FormValue("title"),
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
		Thumbnail:   thumbnail,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	posts, err := s.postService.ListPosts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// GetCategoryPosts handles GET /api/posts/categories/:category
func (s *Server) GetCategoryPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	posts, err := s.postService.ListByCategory(c.UserContext(), c.Params("category"), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /api/posts/users/:id
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, defaultPageSize)

	posts, err := s.postService.ListByCreator(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// EditPost handles PATCH /api/posts/:id. The thumbnail part is optional.
func (s *Server) EditPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	thumbnail, err := readUpload(c, "thumbnail")
	if err != nil {
		return respondServiceError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		RequesterID: currentUserID(c),
		PostID:      id,
		Title:       c.FormValue("title"),
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
		Thumbnail:   thumbnail,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Post %d deleted successfully.", id),
	})
}
