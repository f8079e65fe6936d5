package auth

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/database"
	"github.com/mrlokans/moneta/internal/database/users"
	"github.com/mrlokans/moneta/internal/entities"
	"github.com/mrlokans/moneta/internal/errs"
	"github.com/mrlokans/moneta/internal/validation"
)

// SignupInput is the registration form.
type SignupInput struct {
	Username        string `form:"username" validate:"required,min=5,max=20"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6,max=60"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// Service handles account creation and credential checks.
type Service struct {
	users  *users.Repository
	config config.Auth
	log    *zap.Logger
}

// NewService creates a new authentication service.
func NewService(usersRepo *users.Repository, cfg config.Auth, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:  usersRepo,
		config: cfg,
		log:    log.Named("auth"),
	}
}

// Register creates a member account.
func (s *Service) Register(in SignupInput) (*entities.User, error) {
	return s.create(in, entities.UserRoleMember)
}

// CreateLibrarian creates a librarian account. Only reachable from the CLI.
func (s *Service) CreateLibrarian(in SignupInput) (*entities.User, error) {
	return s.create(in, entities.UserRoleLibrarian)
}

func (s *Service) create(in SignupInput, role entities.UserRole) (*entities.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	// Stored lowercase so the unique index and the login lookup agree.
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(user); err != nil {
		if c, ok := database.UniqueViolation(err); ok {
			if c.Has("username") {
				return nil, errs.ErrDuplicateUsername
			}
			return nil, errs.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("account created", zap.Uint("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Login checks an email and password pair.
func (s *Service) Login(email, password string) (*entities.User, error) {
	user, err := s.users.GetUserByEmail(strings.TrimSpace(email))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, errs.ErrNoSuchUser
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, errs.ErrIncorrectPassword
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.users.GetUserByID(id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
