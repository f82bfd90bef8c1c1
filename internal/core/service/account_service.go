package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

const (
	msgProfileUpdateFailed  = "could not update profile"
	msgPasswordChangeFailed = "could not change password"
	msgAccountDeleteFailed  = "could not delete account"
	msgSupplyOldPassword    = "supply current password"
)

// AccountService is the self-service surface for the logged in user.
type AccountService struct {
	store    ports.CredentialStore
	sessions ports.SessionStore
	audit    *AuditLogger
	log      zerolog.Logger
}

func NewAccountService(
	store ports.CredentialStore,
	sessions ports.SessionStore,
	audit *AuditLogger,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		store:    store,
		sessions: sessions,
		audit:    audit,
		log:      log,
	}
}

func (s *AccountService) ViewAccount(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if actor.UserID != id {
		return nil, domain.ErrForbidden
	}
	return s.store.FindByID(ctx, id)
}

// UpdateProfile applies patch to the actor's own account. Empty patch fields
// keep their current value.
func (s *AccountService) UpdateProfile(ctx context.Context, actor domain.Actor, id string, patch domain.ProfilePatch) (*domain.User, error) {
	if actor.UserID != id {
		return nil, domain.ErrForbidden
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyPatch(ctx, user, patch); err != nil {
		return nil, err
	}

	s.audit.Append(ctx, user.ID, domain.ActionAccountUpdated, fmt.Sprintf("Profiel van '%s' bijgewerkt", user.Username))
	return user, nil
}

func (s *AccountService) applyPatch(ctx context.Context, user *domain.User, patch domain.ProfilePatch) error {
	if patch.Email != "" && patch.Email != user.Email {
		if err := s.store.UpdateEmail(ctx, user, patch.Email); err != nil {
			return domain.ToValidation(err, msgProfileUpdateFailed)
		}
		user.Email = patch.Email
		user.EmailConfirmed = false
	}

	patch.Apply(&user.Profile)
	if err := s.store.Update(ctx, user); err != nil {
		return domain.ToValidation(err, msgProfileUpdateFailed)
	}
	return nil
}

// ChangePassword sets a new password for the actor. The direct change is
// tried first; when the store rejects it, the password is set through a
// freshly issued reset token instead. The fallback also runs when the old
// password is wrong.
func (s *AccountService) ChangePassword(ctx context.Context, actor domain.Actor, id, oldPassword, newPassword string) error {
	if actor.UserID != id {
		return domain.ErrForbidden
	}
	if err := checkPasswordPair(oldPassword, newPassword); err != nil {
		return err
	}
	if newPassword == "" {
		return nil
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.changePassword(ctx, user, oldPassword, newPassword); err != nil {
		return err
	}

	s.audit.Append(ctx, user.ID, domain.ActionPasswordChanged, fmt.Sprintf("Wachtwoord van '%s' gewijzigd", user.Username))
	return nil
}

func checkPasswordPair(oldPassword, newPassword string) error {
	if newPassword != "" && oldPassword == "" {
		return domain.NewValidationError("old_password", msgSupplyOldPassword)
	}
	return nil
}

func (s *AccountService) changePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) error {
	directErr := s.store.ChangePassword(ctx, user, oldPassword, newPassword)
	if directErr == nil {
		metrics.PasswordChangeFallbackTotal.WithLabelValues("not_needed").Inc()
		return nil
	}

	s.log.Warn().Err(directErr).Str("user_id", user.ID).Msg("direct password change rejected, trying reset token")

	fallbackErr := s.changeViaToken(ctx, user, newPassword)
	if fallbackErr == nil {
		metrics.PasswordChangeFallbackTotal.WithLabelValues("success").Inc()
		return nil
	}

	metrics.PasswordChangeFallbackTotal.WithLabelValues("failure").Inc()
	if !domain.IsUserFacing(directErr) && !domain.IsUserFacing(fallbackErr) {
		return fmt.Errorf("change password: %w", errors.Join(directErr, fallbackErr))
	}
	return domain.MergeValidation(msgPasswordChangeFailed, directErr, fallbackErr)
}

func (s *AccountService) changeViaToken(ctx context.Context, user *domain.User, newPassword string) error {
	token, err := s.store.GenerateResetToken(ctx, user)
	if err != nil {
		return err
	}
	return s.store.ConsumeResetToken(ctx, user, token, newPassword)
}

// UpdateAccount runs the profile update followed by the optional password
// change. The password pair is checked before anything is written.
func (s *AccountService) UpdateAccount(ctx context.Context, actor domain.Actor, id string, update ports.AccountUpdate) (*domain.User, error) {
	if actor.UserID != id {
		return nil, domain.ErrForbidden
	}
	if err := checkPasswordPair(update.OldPassword, update.NewPassword); err != nil {
		return nil, err
	}

	user, err := s.UpdateProfile(ctx, actor, id, update.Patch)
	if err != nil {
		return nil, err
	}
	if update.NewPassword == "" {
		return user, nil
	}
	if err := s.ChangePassword(ctx, actor, id, update.OldPassword, update.NewPassword); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteOwnAccount ends every session of the actor and removes the account.
func (s *AccountService) DeleteOwnAccount(ctx context.Context, actor domain.Actor, id string) error {
	if actor.UserID != id {
		return domain.ErrForbidden
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete account: end sessions: %w", err)
	}
	if err := s.store.Delete(ctx, user); err != nil {
		return domain.ToValidation(err, msgAccountDeleteFailed)
	}

	s.audit.Append(ctx, user.ID, domain.ActionAccountDeleted, fmt.Sprintf("Account '%s' verwijderd", user.Username))
	s.log.Info().Str("user_id", user.ID).Msg("account deleted")
	return nil
}
