package ports

import (
	"context"
	"time"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *domain.User
	Token     string
	SessionID string
	ExpiresAt time.Time
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, userID, sessionID string) error
}

type PasswordResetService interface {
	// RequestReset always succeeds from the caller's point of view.
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, email, newPassword string) error
}

type RoleService interface {
	BootstrapFirstUser(ctx context.Context, user *domain.User, requested domain.Role) (domain.Role, error)
	SetExclusiveRole(ctx context.Context, user *domain.User, role domain.Role) error
	ListRoles(ctx context.Context) ([]domain.Role, error)
}
