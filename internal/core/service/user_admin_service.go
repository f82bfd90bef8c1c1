package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

const msgUserEditFailed = "could not update user"

// UserAdminService covers public registration and the Owner's user management.
type UserAdminService struct {
	store    ports.CredentialStore
	roles    *RoleService
	sessions ports.SessionStore
	audit    *AuditLogger
	log      zerolog.Logger
}

func NewUserAdminService(
	store ports.CredentialStore,
	roles *RoleService,
	sessions ports.SessionStore,
	audit *AuditLogger,
	log zerolog.Logger,
) *UserAdminService {
	return &UserAdminService{
		store:    store,
		roles:    roles,
		sessions: sessions,
		audit:    audit,
		log:      log,
	}
}

// Register creates an account for an anonymous caller.
func (s *UserAdminService) Register(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	user, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, user.ID, domain.ActionRegistered,
		fmt.Sprintf("Gebruiker '%s' geregistreerd als %s", user.Username, user.PrimaryRole().DisplayName()))
	return user, nil
}

// CreateUser creates an account on behalf of an Owner.
func (s *UserAdminService) CreateUser(ctx context.Context, actor domain.Actor, input ports.CreateUserInput) (*domain.User, error) {
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	user, err := s.create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.UserID, domain.ActionUserCreated,
		fmt.Sprintf("Gebruiker '%s' aangemaakt als %s", user.Username, user.PrimaryRole().DisplayName()))
	return user, nil
}

func (s *UserAdminService) create(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	user := &domain.User{
		Username: input.Username,
		Email:    input.Email,
		Profile:  input.Profile,
	}
	created, err := s.store.Create(ctx, user, input.Password)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.BootstrapFirstUser(ctx, created, input.Role); err != nil {
		// An account without a role is unusable; drop it so the caller can retry.
		if derr := s.store.Delete(ctx, created); derr != nil {
			s.log.Error().Err(derr).Str("user_id", created.ID).Msg("failed to remove account after role assignment failed")
		}
		return nil, err
	}
	return created, nil
}

// EditUser patches another account and replaces its role. A role change ends
// the account's sessions so its tokens stop carrying the old role.
func (s *UserAdminService) EditUser(ctx context.Context, actor domain.Actor, id string, input ports.EditUserInput) (*domain.User, error) {
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Patch.Email != "" && input.Patch.Email != user.Email {
		if err := s.store.UpdateEmail(ctx, user, input.Patch.Email); err != nil {
			return nil, domain.ToValidation(err, msgUserEditFailed)
		}
		user.Email = input.Patch.Email
		user.EmailConfirmed = false
	}
	input.Patch.Apply(&user.Profile)
	if err := s.store.Update(ctx, user); err != nil {
		return nil, domain.ToValidation(err, msgUserEditFailed)
	}

	previous := user.PrimaryRole()
	if err := s.roles.SetExclusiveRole(ctx, user, input.Role); err != nil {
		return nil, domain.ToValidation(err, msgUserEditFailed)
	}

	s.audit.Append(ctx, actor.UserID, domain.ActionUserEdited,
		fmt.Sprintf("Gebruiker '%s' bewerkt, rol %s", user.Username, roleLabel(user.PrimaryRole())))

	if user.PrimaryRole() != previous {
		if err := s.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("edit user: end sessions: %w", err)
		}
	}
	return user, nil
}

// DeleteUser removes an account. An unknown id is not an error and leaves no
// audit trail.
func (s *UserAdminService) DeleteUser(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsOwner() {
		return domain.ErrForbidden
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}

	if err := s.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: end sessions: %w", err)
	}
	if err := s.store.Delete(ctx, user); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.audit.Append(ctx, actor.UserID, domain.ActionUserDeleted, fmt.Sprintf("Gebruiker '%s' (%s) verwijderd", user.Username, user.ID))
	return nil
}

// ListUsersByRole groups every account by its role in domain.AllRoles order.
// Accounts without a role come last. Empty groups are omitted.
func (s *UserAdminService) ListUsersByRole(ctx context.Context, actor domain.Actor) ([]ports.RoleGroup, error) {
	if !actor.IsOwner() {
		return nil, domain.ErrForbidden
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	byRole := make(map[domain.Role][]*domain.User)
	for _, u := range users {
		r := u.PrimaryRole()
		if !r.Valid() {
			r = ""
		}
		byRole[r] = append(byRole[r], u)
	}

	order := append(append([]domain.Role{}, domain.AllRoles...), "")
	groups := make([]ports.RoleGroup, 0, len(order))
	for _, r := range order {
		if members := byRole[r]; len(members) > 0 {
			groups = append(groups, ports.RoleGroup{Role: r, Users: members})
		}
	}
	return groups, nil
}

func roleLabel(r domain.Role) string {
	if r == "" {
		return "geen"
	}
	return r.DisplayName()
}
