package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

const resetMailSubject = "Wachtwoord opnieuw instellen"

// PasswordResetService implements the forgot-password flow.
type PasswordResetService struct {
	store    ports.CredentialStore
	mail     ports.MailService
	audit    *AuditLogger
	log      zerolog.Logger
	linkBase string
}

// NewPasswordResetService returns a PasswordResetService whose reset links
// point at linkBase (e.g. "https://staff.example.com/reset-password").
func NewPasswordResetService(
	store ports.CredentialStore,
	mail ports.MailService,
	audit *AuditLogger,
	log zerolog.Logger,
	linkBase string,
) *PasswordResetService {
	return &PasswordResetService{
		store:    store,
		mail:     mail,
		audit:    audit,
		log:      log,
		linkBase: linkBase,
	}
}

// RequestReset mails a reset link when email belongs to a user. It returns nil
// whether or not the email is known.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("request", "unknown_email").Inc()
			s.audit.Append(ctx, "", domain.ActionForgotPassword, fmt.Sprintf("E-mailadres '%s' niet gevonden", email))
			return nil
		}
		metrics.PasswordResetsTotal.WithLabelValues("request", "error").Inc()
		s.log.Error().Err(err).Msg("reset request: user lookup failed")
		return nil
	}

	token, err := s.store.GenerateResetToken(ctx, user)
	if err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("request", "error").Inc()
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("reset request: token generation failed")
		return nil
	}

	link, err := s.resetLink(token, user.Email)
	if err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("request", "error").Inc()
		s.log.Error().Err(err).Msg("reset request: invalid link base")
		return nil
	}

	if err := s.mail.SendEmail(ctx, user.Email, resetMailSubject, resetMailBody(link)); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("request", "error").Inc()
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("reset request: mail not sent")
		s.audit.Append(ctx, user.ID, domain.ActionForgotPassword, "Resetlink kon niet verstuurd worden")
		return nil
	}

	metrics.PasswordResetsTotal.WithLabelValues("request", "sent").Inc()
	s.audit.Append(ctx, user.ID, domain.ActionForgotPassword, fmt.Sprintf("Resetlink verstuurd naar '%s'", user.Email))
	return nil
}

// ResetPassword consumes token for the user owning email and sets
// newPassword. An unknown email returns domain.ErrResetRequestInvalid without
// touching any credential.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, email, newPassword string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("reset", "invalid_request").Inc()
			return domain.ErrResetRequestInvalid
		}
		metrics.PasswordResetsTotal.WithLabelValues("reset", "error").Inc()
		return fmt.Errorf("reset password: find user: %w", err)
	}

	if err := s.store.ConsumeResetToken(ctx, user, token, newPassword); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("reset", "rejected").Inc()
		s.audit.Append(ctx, user.ID, domain.ActionResetFailed, fmt.Sprintf("Reset voor '%s' geweigerd", user.Username))
		return err
	}

	metrics.PasswordResetsTotal.WithLabelValues("reset", "success").Inc()
	s.audit.Append(ctx, user.ID, domain.ActionResetSucceeded, fmt.Sprintf("Wachtwoord van '%s' opnieuw ingesteld", user.Username))
	return nil
}

func (s *PasswordResetService) resetLink(token, email string) (string, error) {
	u, err := url.Parse(s.linkBase)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func resetMailBody(link string) string {
	return fmt.Sprintf(
		`<p>Klik <a href="%s">hier</a> om je wachtwoord opnieuw in te stellen.</p>`+
			`<p>Heb je dit niet aangevraagd? Dan mag je deze e-mail negeren.</p>`,
		html.EscapeString(link),
	)
}
