package ports

import (
	"context"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// CredentialStore is the user persistence and credential capability the core
// consumes. Lookups return domain.ErrUserNotFound when the user is absent.
// Lockout counters, role tables and reset tokens live behind it; the store is
// responsible for its own concurrency control.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Create persists a new user with the given plaintext password. Duplicate
	// usernames or emails are reported as *domain.ConflictError, password
	// policy violations as *domain.ValidationError.
	Create(ctx context.Context, user *domain.User, password string) (*domain.User, error)
	// Update persists the profile fields of user.
	Update(ctx context.Context, user *domain.User) error
	// UpdateEmail changes the email and resets the confirmed flag.
	UpdateEmail(ctx context.Context, user *domain.User, email string) error
	Delete(ctx context.Context, user *domain.User) error

	IsLockedOut(ctx context.Context, user *domain.User) (bool, error)
	// VerifyPassword checks password and feeds the lockout counter.
	VerifyPassword(ctx context.Context, user *domain.User, password string) (bool, error)

	GenerateResetToken(ctx context.Context, user *domain.User) (string, error)
	// ConsumeResetToken sets newPassword if token is valid for user. A token
	// succeeds at most once; later attempts return domain.ErrTokenInvalid.
	ConsumeResetToken(ctx context.Context, user *domain.User, token, newPassword string) error
	ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) error

	CountUsers(ctx context.Context) (int64, error)

	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRolesFor(ctx context.Context, user *domain.User) ([]domain.Role, error)
	RemoveRoles(ctx context.Context, user *domain.User, roles []domain.Role) error
	// AddRole rejects unknown roles with a *domain.ValidationError.
	AddRole(ctx context.Context, user *domain.User, role domain.Role) error
}

// ExclusiveRoleSetter is implemented by stores that can replace a user's role
// set in a single atomic write. An empty role clears the set.
type ExclusiveRoleSetter interface {
	SetExclusiveRole(ctx context.Context, user *domain.User, role domain.Role) error
}

// OwnerBootstrapper is implemented by stores that can atomically decide
// whether user is the first account and, if so, make it the Owner.
type OwnerBootstrapper interface {
	AssignOwnerIfFirst(ctx context.Context, user *domain.User) (bool, error)
}
