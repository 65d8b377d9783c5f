package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserService handles registration, login, and device token bookkeeping.
type UserService struct {
	users  storage.UserStore
	tokens storage.DeviceTokenStore
}

func NewUserService(users storage.UserStore, tokens storage.DeviceTokenStore) *UserService {
	return &UserService{users: users, tokens: tokens}
}

func (s *UserService) Register(ctx context.Context, fullName, email, password, phone string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("a valid email is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		FullName:     strings.TrimSpace(fullName),
		Email:        email,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(phone),
		IsActive:     true,
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// Login verifies the credentials and returns the user. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) RegisterDevice(ctx context.Context, userID int64, token, platform string) (*models.DeviceToken, error) {
	if token == "" {
		return nil, errors.New("device token is required")
	}
	if platform == "" {
		platform = "unknown"
	}
	return s.tokens.Upsert(ctx, userID, token, platform)
}

func (s *UserService) RemoveDevice(ctx context.Context, token string) error {
	return s.tokens.Delete(ctx, token)
}

func (s *UserService) ListDevices(ctx context.Context, userID int64) ([]models.DeviceToken, error) {
	return s.tokens.ListByUser(ctx, userID)
}
