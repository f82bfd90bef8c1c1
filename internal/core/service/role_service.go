package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

// RoleService owns every role mutation. A user holds at most one role.
type RoleService struct {
	store ports.CredentialStore
	log   zerolog.Logger
}

func NewRoleService(store ports.CredentialStore, log zerolog.Logger) *RoleService {
	return &RoleService{store: store, log: log}
}

// BootstrapFirstUser assigns the role of a freshly created user and returns
// it. The first account in the system becomes the Owner whatever was
// requested; everyone else gets requested, or RoleUser when empty.
func (s *RoleService) BootstrapFirstUser(ctx context.Context, user *domain.User, requested domain.Role) (domain.Role, error) {
	first, err := s.isFirstUser(ctx, user)
	if err != nil {
		return "", err
	}
	if first {
		user.Roles = []domain.Role{domain.RoleOwner}
		metrics.RoleAssignmentsTotal.WithLabelValues(string(domain.RoleOwner)).Inc()
		s.log.Info().Str("user_id", user.ID).Msg("first account bootstrapped as owner")
		return domain.RoleOwner, nil
	}

	role := requested
	if role == "" {
		role = domain.RoleUser
	}
	if err := s.SetExclusiveRole(ctx, user, role); err != nil {
		return "", err
	}
	return role, nil
}

func (s *RoleService) isFirstUser(ctx context.Context, user *domain.User) (bool, error) {
	if b, ok := s.store.(ports.OwnerBootstrapper); ok {
		first, err := b.AssignOwnerIfFirst(ctx, user)
		if err != nil {
			return false, fmt.Errorf("bootstrap owner: %w", err)
		}
		return first, nil
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("bootstrap owner: count users: %w", err)
	}
	if count != 1 {
		return false, nil
	}
	if err := s.SetExclusiveRole(ctx, user, domain.RoleOwner); err != nil {
		return false, err
	}
	return true, nil
}

// SetExclusiveRole replaces the user's role set with {role}, or clears it when
// role is empty. Previous roles never survive the call.
func (s *RoleService) SetExclusiveRole(ctx context.Context, user *domain.User, role domain.Role) error {
	if setter, ok := s.store.(ports.ExclusiveRoleSetter); ok {
		if err := setter.SetExclusiveRole(ctx, user, role); err != nil {
			return err
		}
	} else if err := s.replaceRoles(ctx, user, role); err != nil {
		return err
	}

	if role == "" {
		user.Roles = nil
		metrics.RoleAssignmentsTotal.WithLabelValues("none").Inc()
		return nil
	}
	user.Roles = []domain.Role{role}
	metrics.RoleAssignmentsTotal.WithLabelValues(string(role)).Inc()
	return nil
}

func (s *RoleService) replaceRoles(ctx context.Context, user *domain.User, role domain.Role) error {
	current, err := s.store.GetRolesFor(ctx, user)
	if err != nil {
		return fmt.Errorf("set role: get roles: %w", err)
	}
	if len(current) > 0 {
		if err := s.store.RemoveRoles(ctx, user, current); err != nil {
			return fmt.Errorf("set role: remove roles: %w", err)
		}
	}
	if role == "" {
		return nil
	}
	return s.store.AddRole(ctx, user, role)
}

func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.store.ListRoles(ctx)
}
