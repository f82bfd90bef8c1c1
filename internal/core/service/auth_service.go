package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

// AuthService implements login and logout.
type AuthService struct {
	store     ports.CredentialStore
	sessions  ports.SessionStore
	audit     *AuditLogger
	log       zerolog.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(
	store ports.CredentialStore,
	sessions ports.SessionStore,
	audit *AuditLogger,
	log zerolog.Logger,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		sessions:  sessions,
		audit:     audit,
		log:       log,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// Login authenticates username/password. An unknown username and a wrong
// password both yield domain.ErrInvalidCredentials. A locked account yields
// domain.ErrLockedOut before the password is looked at.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
			s.audit.Append(ctx, "", domain.ActionLoginFailed, fmt.Sprintf("Onbekende gebruikersnaam '%s'", username))
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: find user: %w", err)
	}

	locked, err := s.store.IsLockedOut(ctx, user)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: lockout check: %w", err)
	}
	if locked {
		metrics.LoginAttemptsTotal.WithLabelValues("locked_out").Inc()
		s.audit.Append(ctx, user.ID, domain.ActionLoginLockedOut, fmt.Sprintf("Account '%s' is geblokkeerd", username))
		return nil, domain.ErrLockedOut
	}

	ok, err := s.store.VerifyPassword(ctx, user, password)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: verify password: %w", err)
	}
	if !ok {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		s.audit.Append(ctx, user.ID, domain.ActionLoginFailed, fmt.Sprintf("Ongeldig wachtwoord voor '%s'", username))
		return nil, domain.ErrInvalidCredentials
	}

	sessionID, err := s.sessions.Create(ctx, user.ID, s.tokenTTL)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: create session: %w", err)
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	token, err := s.generateToken(user, sessionID, expiresAt)
	if err != nil {
		_ = s.sessions.Delete(ctx, sessionID)
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: sign token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.audit.Append(ctx, user.ID, domain.ActionLoginSucceeded, fmt.Sprintf("Gebruiker '%s' ingelogd", username))
	s.log.Info().Str("user_id", user.ID).Msg("login succeeded")

	return &ports.LoginResult{
		User:      user,
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout invalidates sessionID. The audit entry is only written when userID
// still resolves to a user.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, ports.ErrSessionNotFound) {
			return fmt.Errorf("logout: delete session: %w", err)
		}
	}
	if userID == "" {
		return nil
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("logout: user lookup failed")
		}
		return nil
	}

	s.audit.Append(ctx, user.ID, domain.ActionLogout, fmt.Sprintf("Gebruiker '%s' uitgelogd", user.Username))
	return nil
}

func (s *AuthService) generateToken(user *domain.User, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"sid":      sessionID,
		"username": user.Username,
		"role":     string(user.PrimaryRole()),
		"exp":      expiresAt.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
