package server

import (
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Name      string `json:"name" form:"name"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	Password2 string `json:"password2" form:"password2"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type editUserRequest struct {
	Name               string `json:"name" form:"name"`
	Email              string `json:"email" form:"email"`
	CurrentPassword    string `json:"currentPassword" form:"currentPassword"`
	NewPassword        string `json:"newPassword" form:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword" form:"confirmNewPassword"`
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
}

// Register handles POST /api/users/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": fmt.Sprintf("New user %s registered.", user.Email),
	})
}

// Login handles POST /api/users/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	res, err := s.userService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(res)
}

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetAuthors handles GET /api/users
func (s *Server) GetAuthors(c *fiber.Ctx) error {
	page := parsePagination(c, maxPaginationLimit)

	authors, err := s.userService.ListAuthors(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(authors)
}

// ChangeAvatar handles POST /api/users/change-avatar (multipart field "avatar")
func (s *Server) ChangeAvatar(c *fiber.Ctx) error {
	upload, err := readUpload(c, "avatar")
	if err != nil {
		return respondServiceError(c, err)
	}

	user, err := s.userService.ChangeAvatar(c.UserContext(), currentUserID(c), upload)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// EditUser handles PATCH /api/users/edit-user
func (s *Server) EditUser(c *fiber.Ctx) error {
	var req editUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := s.userService.EditUser(c.UserContext(), service.EditUserInput{
		UserID:             currentUserID(c),
		Name:               req.Name,
		Email:              req.Email,
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}
