package auth

import (
	"context"
	"time"

	"github.com/WalidA2D/NEURALINKED/domain"
)

type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (string, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUserById(ctx context.Context, id string) (domain.User, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

type TokenManager interface {
	Generate(id string, now time.Time) (string, error)
	Verify(token string) (string, error)
}

// AuthService is what the HTTP layer needs from the service.
type AuthService interface {
	Signup(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (domain.User, error)
	Token(id string) (string, error)
	VerifyToken(token string) (string, error)
	UserById(ctx context.Context, id string) (domain.User, error)
}
