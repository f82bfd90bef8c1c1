package ports

import (
	"context"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// CreateUserInput is the DTO for registration and admin user creation.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
	Profile  domain.Profile
}

// EditUserInput is the DTO for an Owner editing another account.
type EditUserInput struct {
	Patch domain.ProfilePatch
	Role  domain.Role
}

// RoleGroup is one bucket of ListUsersByRole. Role is "" for users without one.
type RoleGroup struct {
	Role  domain.Role
	Users []*domain.User
}

// UserAdminService manages accounts on behalf of an Owner, plus public
// registration.
type UserAdminService interface {
	Register(ctx context.Context, input CreateUserInput) (*domain.User, error)
	CreateUser(ctx context.Context, actor domain.Actor, input CreateUserInput) (*domain.User, error)
	EditUser(ctx context.Context, actor domain.Actor, id string, input EditUserInput) (*domain.User, error)
	DeleteUser(ctx context.Context, actor domain.Actor, id string) error
	ListUsersByRole(ctx context.Context, actor domain.Actor) ([]RoleGroup, error)
}
