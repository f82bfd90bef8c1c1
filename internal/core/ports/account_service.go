package ports

import (
	"context"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// AccountUpdate combines a profile patch with an optional password change.
type AccountUpdate struct {
	Patch       domain.ProfilePatch
	OldPassword string
	NewPassword string
}

// AccountService is the self-service surface. Every operation rejects an
// actor acting on an id other than its own with domain.ErrForbidden.
type AccountService interface {
	ViewAccount(ctx context.Context, actor domain.Actor, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, actor domain.Actor, id string, patch domain.ProfilePatch) (*domain.User, error)
	ChangePassword(ctx context.Context, actor domain.Actor, id, oldPassword, newPassword string) error
	UpdateAccount(ctx context.Context, actor domain.Actor, id string, update AccountUpdate) (*domain.User, error)
	DeleteOwnAccount(ctx context.Context, actor domain.Actor, id string) error
}
