package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Credential store
// ---------------------------------------------------------------------------

type stubStore struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	passwords map[string]string
	roles     map[string][]domain.Role
	tokens    map[string]string // token -> user id
	locked    map[string]bool
	nextID    int
	tokenSeq  int

	changePasswordErr error
	resetTokenErr     error
	updateErr         error
	findErr           error
	calls             []string
}

func newStubStore() *stubStore {
	return &stubStore{
		users:     make(map[string]*domain.User),
		passwords: make(map[string]string),
		roles:     make(map[string][]domain.Role),
		tokens:    make(map[string]string),
		locked:    make(map[string]bool),
	}
}

func (s *stubStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *stubStore) clone(u *domain.User) *domain.User {
	c := *u
	c.Roles = append([]domain.Role(nil), s.roles[u.ID]...)
	return &c
}

func (s *stubStore) find(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, u := range s.users {
		if match(u) {
			return s.clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.Username == username })
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *stubStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	return s.find(func(u *domain.User) bool { return u.ID == id })
}

func (s *stubStore) ListUsers(_ context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func checkPolicy(password string) error {
	if len(password) < 6 {
		return domain.NewValidationError("password", "password must be at least 6 characters")
	}
	return nil
}

func (s *stubStore) Create(_ context.Context, user *domain.User, password string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Create")
	for _, u := range s.users {
		if u.Username == user.Username {
			return nil, &domain.ConflictError{Field: "username"}
		}
		if u.Email == user.Email {
			return nil, &domain.ConflictError{Field: "email"}
		}
	}
	if err := checkPolicy(password); err != nil {
		return nil, err
	}
	s.nextID++
	c := *user
	c.ID = fmt.Sprintf("u%d", s.nextID)
	s.users[c.ID] = &c
	s.passwords[c.ID] = password
	return s.clone(&c), nil
}

func (s *stubStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Update")
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	c := *user
	c.Roles = nil
	s.users[user.ID] = &c
	return nil
}

func (s *stubStore) UpdateEmail(_ context.Context, user *domain.User, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateEmail")
	for id, u := range s.users {
		if id != user.ID && u.Email == email {
			return &domain.ConflictError{Field: "email"}
		}
	}
	u, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Email = email
	u.EmailConfirmed = false
	return nil
}

func (s *stubStore) Delete(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Delete")
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, user.ID)
	delete(s.passwords, user.ID)
	delete(s.roles, user.ID)
	return nil
}

func (s *stubStore) IsLockedOut(_ context.Context, user *domain.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked[user.ID], nil
}

func (s *stubStore) VerifyPassword(_ context.Context, user *domain.User, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwords[user.ID] == password, nil
}

func (s *stubStore) GenerateResetToken(_ context.Context, user *domain.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GenerateResetToken")
	if s.resetTokenErr != nil {
		return "", s.resetTokenErr
	}
	s.tokenSeq++
	token := fmt.Sprintf("tok-%d", s.tokenSeq)
	s.tokens[token] = user.ID
	return token, nil
}

func (s *stubStore) ConsumeResetToken(_ context.Context, user *domain.User, token, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ConsumeResetToken")
	if err := checkPolicy(newPassword); err != nil {
		return err
	}
	if owner, ok := s.tokens[token]; !ok || owner != user.ID {
		return domain.ErrTokenInvalid
	}
	delete(s.tokens, token)
	s.passwords[user.ID] = newPassword
	return nil
}

func (s *stubStore) ChangePassword(_ context.Context, user *domain.User, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ChangePassword")
	if s.changePasswordErr != nil {
		return s.changePasswordErr
	}
	if s.passwords[user.ID] != oldPassword {
		return domain.ErrInvalidCredentials
	}
	if err := checkPolicy(newPassword); err != nil {
		return err
	}
	s.passwords[user.ID] = newPassword
	return nil
}

func (s *stubStore) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *stubStore) ListRoles(_ context.Context) ([]domain.Role, error) {
	return append([]domain.Role(nil), domain.AllRoles...), nil
}

func (s *stubStore) GetRolesFor(_ context.Context, user *domain.User) ([]domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Role(nil), s.roles[user.ID]...), nil
}

func (s *stubStore) RemoveRoles(_ context.Context, user *domain.User, roles []domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("RemoveRoles")
	kept := s.roles[user.ID][:0]
	for _, have := range s.roles[user.ID] {
		drop := false
		for _, r := range roles {
			if have == r {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, have)
		}
	}
	s.roles[user.ID] = kept
	return nil
}

func (s *stubStore) AddRole(_ context.Context, user *domain.User, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("AddRole")
	if !role.Valid() {
		return domain.NewValidationError("role", "unknown role "+string(role))
	}
	s.roles[user.ID] = append(s.roles[user.ID], role)
	return nil
}

func (s *stubStore) rolesOf(id string) []domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Role(nil), s.roles[id]...)
}

func (s *stubStore) mutated() bool {
	for _, c := range s.calls {
		switch c {
		case "ChangePassword", "ConsumeResetToken", "Update", "UpdateEmail", "Delete":
			return true
		}
	}
	return false
}

// seed creates a user bypassing the services.
func (s *stubStore) seed(username, email, password string, roles ...domain.Role) *domain.User {
	u, err := s.Create(context.Background(), &domain.User{Username: username, Email: email}, password)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.roles[u.ID] = roles
	s.calls = nil
	s.mu.Unlock()
	u.Roles = roles
	return u
}

// atomicStore adds the optional atomic capabilities on top of stubStore.
type atomicStore struct {
	*stubStore
	ownerClaimed bool
	ownerErr     error
	exclusive    int
}

func (s *atomicStore) SetExclusiveRole(_ context.Context, user *domain.User, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exclusive++
	if role == "" {
		s.roles[user.ID] = nil
		return nil
	}
	if !role.Valid() {
		return domain.NewValidationError("role", "unknown role "+string(role))
	}
	s.roles[user.ID] = []domain.Role{role}
	return nil
}

func (s *atomicStore) AssignOwnerIfFirst(_ context.Context, user *domain.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerErr != nil {
		return false, s.ownerErr
	}
	if s.ownerClaimed {
		return false, nil
	}
	s.ownerClaimed = true
	s.roles[user.ID] = []domain.Role{domain.RoleOwner}
	return true, nil
}

var (
	_ ports.CredentialStore     = (*stubStore)(nil)
	_ ports.ExclusiveRoleSetter = (*atomicStore)(nil)
	_ ports.OwnerBootstrapper   = (*atomicStore)(nil)
)

// ---------------------------------------------------------------------------
// Sessions, mail, audit
// ---------------------------------------------------------------------------

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]string
	seq      int
	err      error
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: make(map[string]string)}
}

func (s *stubSessions) Create(_ context.Context, userID string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.seq++
	sid := fmt.Sprintf("sid-%d", s.seq)
	s.sessions[sid] = userID
	return sid, nil
}

func (s *stubSessions) Resolve(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.sessions[sessionID]
	if !ok {
		return "", ports.ErrSessionNotFound
	}
	return uid, nil
}

func (s *stubSessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ports.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *stubSessions) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for sid, uid := range s.sessions {
		if uid == userID {
			delete(s.sessions, sid)
		}
	}
	return nil
}

type sentMail struct {
	to, subject, body string
}

type stubMail struct {
	sent []sentMail
	err  error
}

func (m *stubMail) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type memorySink struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error
}

func (m *memorySink) Append(_ context.Context, e domain.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memorySink) List(_ context.Context, f domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditLogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := m.entries[i]
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memorySink) withAction(action string) []domain.AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditLogEntry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

var errBoom = errors.New("boom")

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	store    *stubStore
	sessions *stubSessions
	mail     *stubMail
	sink     *memorySink
	audit    *AuditLogger
	roles    *RoleService
	auth     *AuthService
	reset    *PasswordResetService
	account  *AccountService
	admin    *UserAdminService
}

func newFixture() *fixture {
	return newFixtureWith(newStubStore(), nil)
}

// newFixtureWith wires the services on top of store. When wrap is non-nil
// the services see wrap instead of store.
func newFixtureWith(store *stubStore, wrap ports.CredentialStore) *fixture {
	var cs ports.CredentialStore = store
	if wrap != nil {
		cs = wrap
	}
	log := zerolog.Nop()
	f := &fixture{
		store:    store,
		sessions: newStubSessions(),
		mail:     &stubMail{},
		sink:     &memorySink{},
	}
	f.audit = NewAuditLogger(f.sink, f.sink, log)
	f.roles = NewRoleService(cs, log)
	f.auth = NewAuthService(cs, f.sessions, f.audit, log, "test-secret", time.Hour)
	f.reset = NewPasswordResetService(cs, f.mail, f.audit, log, "https://staff.example.com/reset-password")
	f.account = NewAccountService(cs, f.sessions, f.audit, log)
	f.admin = NewUserAdminService(cs, f.roles, f.sessions, f.audit, log)
	return f
}

func actorFor(u *domain.User) domain.Actor {
	return domain.Actor{UserID: u.ID, Username: u.Username, Role: u.PrimaryRole()}
}
