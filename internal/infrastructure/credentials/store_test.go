package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tafelzaak/identity/internal/core/domain"
	redisstore "github.com/tafelzaak/identity/internal/infrastructure/db/redis"
)

type memoryRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	owner  string
	nextID int

	setRolesErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*domain.User)}
}

func (r *memoryRepo) copyOf(u *domain.User) *domain.User {
	c := *u
	c.Roles = append([]domain.Role(nil), u.Roles...)
	return &c
}

func (r *memoryRepo) Insert(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, &domain.ConflictError{Field: "username"}
		}
		if u.Email == user.Email {
			return nil, &domain.ConflictError{Field: "email"}
		}
	}
	r.nextID++
	c := r.copyOf(user)
	c.ID = fmt.Sprintf("id-%d", r.nextID)
	r.users[c.ID] = c
	return r.copyOf(c), nil
}

func (r *memoryRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return r.copyOf(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *memoryRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, r.copyOf(u))
	}
	return out, nil
}

func (r *memoryRepo) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *memoryRepo) UpdateProfile(_ context.Context, user *domain.User) error {
	return r.mutate(user.ID, func(u *domain.User) { u.Profile = user.Profile })
}

func (r *memoryRepo) UpdateEmail(_ context.Context, id, email string) error {
	return r.mutate(id, func(u *domain.User) {
		u.Email = email
		u.EmailConfirmed = false
	})
}

func (r *memoryRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	return r.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *memoryRepo) SetRoles(_ context.Context, id string, roles []domain.Role) error {
	if r.setRolesErr != nil {
		return r.setRolesErr
	}
	return r.mutate(id, func(u *domain.User) { u.Roles = append([]domain.Role(nil), roles...) })
}

func (r *memoryRepo) PullRoles(_ context.Context, id string, roles []domain.Role) error {
	return r.mutate(id, func(u *domain.User) {
		kept := u.Roles[:0]
		for _, have := range u.Roles {
			drop := false
			for _, r := range roles {
				drop = drop || have == r
			}
			if !drop {
				kept = append(kept, have)
			}
		}
		u.Roles = kept
	})
}

func (r *memoryRepo) AddRole(_ context.Context, id string, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) { u.Roles = append(u.Roles, role) })
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	if r.owner == id {
		r.owner = ""
	}
	return nil
}

func (r *memoryRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *memoryRepo) ClaimOwner(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	if r.owner != "" || r.hasOwnerLocked() {
		r.mu.Unlock()
		return false, nil
	}
	r.owner = id
	r.mu.Unlock()

	if err := r.SetRoles(ctx, id, []domain.Role{domain.RoleOwner}); err != nil {
		r.mu.Lock()
		r.owner = ""
		r.mu.Unlock()
		return false, err
	}
	return true, nil
}

func (r *memoryRepo) hasOwnerLocked() bool {
	for _, u := range r.users {
		for _, role := range u.Roles {
			if role == domain.RoleOwner {
				return true
			}
		}
	}
	return false
}

func newTestStore(t *testing.T) (*Store, *memoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	lockout := redisstore.NewLockout(client, redisstore.LockoutConfig{Threshold: 3, Window: time.Minute, Duration: time.Minute})
	tokens := redisstore.NewResetTokens(client, time.Hour)
	store := NewStore(repo, lockout, tokens, zerolog.Nop(), WithBcryptCost(bcrypt.MinCost))
	return store, repo, mr
}

func createUser(t *testing.T, s *Store, username, password string) *domain.User {
	t.Helper()
	u, err := s.Create(context.Background(), &domain.User{Username: username, Email: username + "@example.com"}, password)
	require.NoError(t, err)
	return u
}

func TestStore_Create_HashesPassword(t *testing.T) {
	s, repo, _ := newTestStore(t)

	u := createUser(t, s, "alice", "Secret1!")

	stored := repo.users[u.ID]
	assert.NotEqual(t, "Secret1!", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret1!")))
}

func TestStore_Create_ReportsAllFieldErrors(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.Create(context.Background(), &domain.User{Username: " ", Email: "not-an-email"}, "abc")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["username"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
}

func TestStore_Create_Conflict(t *testing.T) {
	s, _, _ := newTestStore(t)
	createUser(t, s, "alice", "Secret1!")

	_, err := s.Create(context.Background(), &domain.User{Username: "alice", Email: "other@example.com"}, "Secret1!")
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestStore_VerifyPassword_LocksOut(t *testing.T) {
	s, _, _ := newTestStore(t)
	u := createUser(t, s, "bob", "Secret1!")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.VerifyPassword(ctx, u, "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	locked, err := s.IsLockedOut(ctx, u)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestStore_VerifyPassword_SuccessResetsCounter(t *testing.T) {
	s, _, _ := newTestStore(t)
	u := createUser(t, s, "bob", "Secret1!")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.VerifyPassword(ctx, u, "wrong")
		require.NoError(t, err)
	}
	ok, err := s.VerifyPassword(ctx, u, "Secret1!")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.VerifyPassword(ctx, u, "wrong")
	require.NoError(t, err)
	locked, err := s.IsLockedOut(ctx, u)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestStore_ConsumeResetToken(t *testing.T) {
	s, repo, _ := newTestStore(t)
	u := createUser(t, s, "carol", "Secret1!")
	ctx := context.Background()

	token, err := s.GenerateResetToken(ctx, u)
	require.NoError(t, err)

	var ve *domain.ValidationError
	require.ErrorAs(t, s.ConsumeResetToken(ctx, u, token, "weak"), &ve)

	require.NoError(t, s.ConsumeResetToken(ctx, u, token, "NewPass1!"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[u.ID].PasswordHash), []byte("NewPass1!")))

	assert.ErrorIs(t, s.ConsumeResetToken(ctx, u, token, "Other1!x"), domain.ErrTokenInvalid)
}

func TestStore_ChangePassword(t *testing.T) {
	s, repo, _ := newTestStore(t)
	u := createUser(t, s, "dave", "Secret1!")
	ctx := context.Background()

	assert.ErrorIs(t, s.ChangePassword(ctx, u, "wrong", "NewPass1!"), domain.ErrInvalidCredentials)

	var ve *domain.ValidationError
	require.ErrorAs(t, s.ChangePassword(ctx, u, "Secret1!", "short"), &ve)

	require.NoError(t, s.ChangePassword(ctx, u, "Secret1!", "NewPass1!"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[u.ID].PasswordHash), []byte("NewPass1!")))
}

func TestStore_Roles(t *testing.T) {
	s, _, _ := newTestStore(t)
	u := createUser(t, s, "erin", "Secret1!")
	ctx := context.Background()

	require.NoError(t, s.AddRole(ctx, u, domain.RoleWaiter))
	require.NoError(t, s.SetExclusiveRole(ctx, u, domain.RoleCook))
	roles, err := s.GetRolesFor(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleCook}, roles)

	var ve *domain.ValidationError
	require.ErrorAs(t, s.AddRole(ctx, u, "janitor"), &ve)
	assert.Equal(t, "role", ve.Fields[0].Field)

	require.NoError(t, s.SetExclusiveRole(ctx, u, ""))
	roles, err = s.GetRolesFor(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestStore_AssignOwnerIfFirst(t *testing.T) {
	s, _, _ := newTestStore(t)
	a := createUser(t, s, "a", "Secret1!")
	b := createUser(t, s, "b", "Secret1!")
	ctx := context.Background()

	first, err := s.AssignOwnerIfFirst(ctx, a)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = s.AssignOwnerIfFirst(ctx, b)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestStore_AssignOwnerIfFirst_AfterOwnerDeleted(t *testing.T) {
	s, repo, _ := newTestStore(t)
	ctx := context.Background()

	admin := createUser(t, s, "admin", "Secret1!")
	first, err := s.AssignOwnerIfFirst(ctx, admin)
	require.NoError(t, err)
	require.True(t, first)
	require.NoError(t, s.Delete(ctx, admin))

	next := createUser(t, s, "newadmin", "Secret1!")
	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	first, err = s.AssignOwnerIfFirst(ctx, next)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, []domain.Role{domain.RoleOwner}, repo.users[next.ID].Roles)
}

func TestStore_AssignOwnerIfFirst_FailedRoleWriteReleasesClaim(t *testing.T) {
	s, repo, _ := newTestStore(t)
	ctx := context.Background()
	a := createUser(t, s, "a", "Secret1!")
	b := createUser(t, s, "b", "Secret1!")

	repo.setRolesErr = fmt.Errorf("write failed")
	_, err := s.AssignOwnerIfFirst(ctx, a)
	require.Error(t, err)

	repo.setRolesErr = nil
	first, err := s.AssignOwnerIfFirst(ctx, b)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestStore_ConsumeResetToken_ClearsFailedLogins(t *testing.T) {
	s, _, mr := newTestStore(t)
	u := createUser(t, s, "gina", "Secret1!")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.VerifyPassword(ctx, u, "wrong")
		require.NoError(t, err)
	}
	token, err := s.GenerateResetToken(ctx, u)
	require.NoError(t, err)
	require.NoError(t, s.ConsumeResetToken(ctx, u, token, "NewPass1!"))
	assert.False(t, mr.Exists("lockout:failures:"+u.ID))

	_, err = s.VerifyPassword(ctx, u, "wrong")
	require.NoError(t, err)
	locked, err := s.IsLockedOut(ctx, u)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestStore_OverlongPasswordIsFieldError(t *testing.T) {
	s, _, _ := newTestStore(t)
	u := createUser(t, s, "hank", "Secret1!")
	ctx := context.Background()
	long := "Aa1!" + strings.Repeat("x", 80)

	_, err := s.Create(ctx, &domain.User{Username: "ivy", Email: "ivy@example.com"}, long)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "password", ve.Fields[0].Field)

	require.ErrorAs(t, s.ChangePassword(ctx, u, "Secret1!", long), &ve)

	token, err := s.GenerateResetToken(ctx, u)
	require.NoError(t, err)
	require.ErrorAs(t, s.ConsumeResetToken(ctx, u, token, long), &ve)
}

func TestStore_Delete_ClearsRedisState(t *testing.T) {
	s, _, mr := newTestStore(t)
	u := createUser(t, s, "frank", "Secret1!")
	ctx := context.Background()

	_, err := s.GenerateResetToken(ctx, u)
	require.NoError(t, err)
	_, err = s.VerifyPassword(ctx, u, "wrong")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, u))
	assert.False(t, mr.Exists("reset:"+u.ID))
	assert.False(t, mr.Exists("lockout:failures:"+u.ID))

	_, err = s.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
