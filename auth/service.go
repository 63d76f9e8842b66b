package auth

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/WalidA2D/NEURALINKED/domain"
)

var usernameFormat = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

type Service struct {
	repo   UserRepository
	hasher PasswordHasher
	tokens TokenManager
}

func NewService(repo UserRepository, hasher PasswordHasher, tokens TokenManager) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// Signup registers a new account and returns its id.
func (s *Service) Signup(ctx context.Context, username, password string) (string, error) {
	if !usernameFormat.MatchString(username) {
		return "", domain.ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return "", domain.ErrPasswordTooShort
	}
	if len(password) > maxPasswordLen {
		return "", domain.ErrPasswordTooLong
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	return s.repo.CreateUser(ctx, username, hash)
}

// Login checks the credentials and returns the matching user. An unknown
// username and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	match, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return domain.User{}, err
	}
	if !match {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) Token(id string) (string, error) {
	return s.tokens.Generate(id, time.Now())
}

func (s *Service) VerifyToken(token string) (string, error) {
	return s.tokens.Verify(token)
}

func (s *Service) UserById(ctx context.Context, id string) (domain.User, error) {
	return s.repo.GetUserById(ctx, id)
}
