package service

import (
	"context"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo   repository.UserRepository
	media      *MediaCoordinator
	auth       *AuthService
	bcryptCost int
}

type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	Password2 string
}

type EditUserInput struct {
	UserID             uint
	Name               string
	Email              string
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token string `json:"token"`
	ID    uint   `json:"id"`
	Name  string `json:"name"`
}

func NewUserService(userRepo repository.UserRepository, media *MediaCoordinator, auth *AuthService, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		userRepo:   userRepo,
		media:      media,
		auth:       auth,
		bcryptCost: bcryptCost,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, models.NewValidationError("Fill in all fields.")
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, models.NewValidationError("Name is too long.")
	}
	email := validation.NormalizeEmail(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError("Email is invalid.")
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, models.NewConflictError("Email already exists.")
	} else if !models.HasCode(err, models.CodeNotFound) {
		return nil, err
	}

	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Password != in.Password2 {
		return nil, models.NewValidationError("Passwords do not match.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Name: name, Email: email, Password: string(hash)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError("Fill in all fields.")
	}

	user, err := s.userRepo.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewAuthError("Invalid email.")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewAuthError("Invalid password.")
	}

	token, err := s.auth.IssueToken(user.ID, user.Name)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LoginResult{Token: token, ID: user.ID, Name: user.Name}, nil
}

// GetUser returns the public profile of a user. Profiles are cached.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		found, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return &user, nil
}

func (s *UserService) ListAuthors(ctx context.Context, limit, offset int) ([]models.User, error) {
	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// ChangeAvatar replaces the user's avatar with upload.
func (s *UserService) ChangeAvatar(ctx context.Context, userID uint, upload *Upload) (*models.User, error) {
	// ReplaceBlob treats a nil upload as a fields-only update.
	if upload == nil {
		return nil, models.NewValidationError(AvatarPolicy.MissingMessage)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.media.ReplaceBlob(ctx, user, upload, AvatarPolicy, func(ctx context.Context, _ *models.BlobRef) error {
		return s.userRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// EditUser updates name, email and password after verifying the current
// password.
func (s *UserService) EditUser(ctx context.Context, in EditUserInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Email) == "" || in.CurrentPassword == "" || in.NewPassword == "" {
		return nil, models.NewValidationError("Fill in all fields.")
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, models.NewValidationError("Name is too long.")
	}
	email := validation.NormalizeEmail(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError("Email is invalid.")
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != user.ID:
		return nil, models.NewConflictError("Email already exists.")
	case err != nil && !models.HasCode(err, models.CodeNotFound):
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)); err != nil {
		return nil, models.NewAuthError("Invalid current password.")
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return nil, models.NewValidationError("New passwords do not match.")
	}
	if err := validation.ValidatePassword(in.NewPassword); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user.Name = name
	user.Email = email
	user.Password = string(hash)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}
