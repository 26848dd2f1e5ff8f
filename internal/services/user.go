package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfkeeper/apiserver/internal/auth"
	"github.com/shelfkeeper/apiserver/internal/store"
	"github.com/shelfkeeper/apiserver/internal/validation"
	"github.com/shelfkeeper/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates registration, login and account lookups.
type UserService struct {
	repo      UserRepository
	tokens    *auth.TokenIssuer
	validator *validation.Validator
	hashCost  int
}

func NewUserService(repo UserRepository, tokens *auth.TokenIssuer, validator *validation.Validator) *UserService {
	return &UserService{
		repo:      repo,
		tokens:    tokens,
		validator: validator,
		hashCost:  bcrypt.DefaultCost,
	}
}

// Register validates req and stores a new account with a salted password
// hash. A taken email yields ErrConflict.
func (s *UserService) Register(ctx context.Context, req types.RegisterRequest) (types.User, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return types.User{}, ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	username := req.Username
	if username == "" {
		username = types.DefaultUsername
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        req.Email,
		Role:         types.DefaultRole,
		PasswordHash: string(hashed),
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrConflict
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the credentials in req and returns a signed access token.
func (s *UserService) Login(ctx context.Context, req types.LoginRequest) (string, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return "", err
	}

	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
