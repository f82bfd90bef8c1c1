// Package credentials implements ports.CredentialStore on top of a user
// repository, bcrypt hashing, a Redis lockout counter and Redis reset tokens.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
	redisstore "github.com/tafelzaak/identity/internal/infrastructure/db/redis"
)

// UserRepository is the persistence the store builds on. The MongoDB
// repository implements it.
type UserRepository interface {
	Insert(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdateEmail(ctx context.Context, id, email string) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetRoles(ctx context.Context, id string, roles []domain.Role) error
	PullRoles(ctx context.Context, id string, roles []domain.Role) error
	AddRole(ctx context.Context, id string, role domain.Role) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	ClaimOwner(ctx context.Context, id string) (bool, error)
}

// LockoutTracker counts failed logins.
type LockoutTracker interface {
	IsLockedOut(ctx context.Context, userID string) (bool, error)
	RecordFailure(ctx context.Context, userID string) (bool, error)
	Reset(ctx context.Context, userID string) error
	Clear(ctx context.Context, userID string) error
}

// TokenStore keeps the pending reset token of each user.
type TokenStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Consume(ctx context.Context, userID, token string) error
	Revoke(ctx context.Context, userID string) error
}

// Store is the production CredentialStore.
type Store struct {
	users    UserRepository
	lockout  LockoutTracker
	tokens   TokenStore
	policy   PasswordPolicy
	validate *validator.Validate
	cost     int
	log      zerolog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithPolicy overrides DefaultPasswordPolicy.
func WithPolicy(p PasswordPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

func NewStore(users UserRepository, lockout LockoutTracker, tokens TokenStore, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		users:    users,
		lockout:  lockout,
		tokens:   tokens,
		policy:   DefaultPasswordPolicy,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ ports.CredentialStore     = (*Store)(nil)
	_ ports.ExclusiveRoleSetter = (*Store)(nil)
	_ ports.OwnerBootstrapper   = (*Store)(nil)
)

func (s *Store) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.FindByUsername(ctx, strings.TrimSpace(username))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.FindByEmail(ctx, strings.TrimSpace(email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// Create validates the account fields and password, hashes the password and
// inserts the user. All field problems are reported together.
func (s *Store) Create(ctx context.Context, user *domain.User, password string) (*domain.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)

	var fields []domain.FieldError
	if user.Username == "" {
		fields = append(fields, domain.FieldError{Field: "username", Message: "username is required"})
	}
	if err := s.validate.Var(user.Email, "required,email"); err != nil {
		fields = append(fields, domain.FieldError{Field: "email", Message: "a valid email address is required"})
	}
	if ve := s.policy.Validate("password", password); ve != nil {
		fields = append(fields, ve.Fields...)
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.Roles = nil

	created, err := s.users.Insert(ctx, user)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, user *domain.User) error {
	return s.users.UpdateProfile(ctx, user)
}

func (s *Store) UpdateEmail(ctx context.Context, user *domain.User, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return domain.NewValidationError("email", "a valid email address is required")
	}
	return s.users.UpdateEmail(ctx, user.ID, email)
}

// Delete removes the account and any lockout or reset state left behind.
func (s *Store) Delete(ctx context.Context, user *domain.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	if err := s.tokens.Revoke(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to revoke reset token of deleted user")
	}
	if err := s.lockout.Clear(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to clear lockout of deleted user")
	}
	return nil
}

func (s *Store) IsLockedOut(ctx context.Context, user *domain.User) (bool, error) {
	return s.lockout.IsLockedOut(ctx, user.ID)
}

// VerifyPassword compares password with the stored hash. A mismatch counts
// towards the lockout threshold; a match resets the counter.
func (s *Store) VerifyPassword(ctx context.Context, user *domain.User, password string) (bool, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, fmt.Errorf("compare password: %w", err)
		}
		locked, lerr := s.lockout.RecordFailure(ctx, user.ID)
		if lerr != nil {
			s.log.Warn().Err(lerr).Str("user_id", user.ID).Msg("failed to record login failure")
		} else if locked {
			s.log.Warn().Str("user_id", user.ID).Msg("account locked after repeated failures")
		}
		return false, nil
	}

	if err := s.lockout.Reset(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to reset login failures")
	}
	return true, nil
}

func (s *Store) GenerateResetToken(ctx context.Context, user *domain.User) (string, error) {
	return s.tokens.Issue(ctx, user.ID)
}

// ConsumeResetToken checks newPassword against the policy before touching the
// token, so a rejected password leaves the token usable. A successful reset
// clears the failed login counter.
func (s *Store) ConsumeResetToken(ctx context.Context, user *domain.User, token, newPassword string) error {
	if ve := s.policy.Validate("password", newPassword); ve != nil {
		return ve
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.tokens.Consume(ctx, user.ID, token); err != nil {
		if errors.Is(err, redisstore.ErrResetTokenMismatch) {
			return domain.ErrTokenInvalid
		}
		return err
	}

	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("reset token consumed but password not stored")
		return fmt.Errorf("store password: %w", err)
	}
	if err := s.lockout.Reset(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to reset login failures")
	}
	return nil
}

func (s *Store) ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}
	if ve := s.policy.Validate("password", newPassword); ve != nil {
		return ve
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}

func (s *Store) ListRoles(_ context.Context) ([]domain.Role, error) {
	return append([]domain.Role(nil), domain.AllRoles...), nil
}

func (s *Store) GetRolesFor(ctx context.Context, user *domain.User) ([]domain.Role, error) {
	fresh, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return fresh.Roles, nil
}

func (s *Store) RemoveRoles(ctx context.Context, user *domain.User, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	return s.users.PullRoles(ctx, user.ID, roles)
}

func (s *Store) AddRole(ctx context.Context, user *domain.User, role domain.Role) error {
	if !role.Valid() {
		return domain.NewValidationError("role", "unknown role "+string(role))
	}
	return s.users.AddRole(ctx, user.ID, role)
}

// SetExclusiveRole replaces the role set with {role} in one write. An empty
// role clears it.
func (s *Store) SetExclusiveRole(ctx context.Context, user *domain.User, role domain.Role) error {
	if role == "" {
		return s.users.SetRoles(ctx, user.ID, nil)
	}
	if !role.Valid() {
		return domain.NewValidationError("role", "unknown role "+string(role))
	}
	return s.users.SetRoles(ctx, user.ID, []domain.Role{role})
}

func (s *Store) AssignOwnerIfFirst(ctx context.Context, user *domain.User) (bool, error) {
	return s.users.ClaimOwner(ctx, user.ID)
}

func (s *Store) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}
