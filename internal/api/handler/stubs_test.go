package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tafelzaak/identity/internal/api/middleware"
	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

type stubAuthService struct {
	loginFn  func(ctx context.Context, username, password string) (*ports.LoginResult, error)
	logoutFn func(ctx context.Context, userID, sessionID string) error
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) Logout(ctx context.Context, userID, sessionID string) error {
	return s.logoutFn(ctx, userID, sessionID)
}

type stubResetService struct {
	requestFn func(ctx context.Context, email string) error
	resetFn   func(ctx context.Context, token, email, newPassword string) error
}

func (s *stubResetService) RequestReset(ctx context.Context, email string) error {
	return s.requestFn(ctx, email)
}

func (s *stubResetService) ResetPassword(ctx context.Context, token, email, newPassword string) error {
	return s.resetFn(ctx, token, email, newPassword)
}

type stubAccountService struct {
	viewFn   func(ctx context.Context, actor domain.Actor, id string) (*domain.User, error)
	updateFn func(ctx context.Context, actor domain.Actor, id string, update ports.AccountUpdate) (*domain.User, error)
	deleteFn func(ctx context.Context, actor domain.Actor, id string) error
}

func (s *stubAccountService) ViewAccount(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	return s.viewFn(ctx, actor, id)
}

func (s *stubAccountService) UpdateProfile(context.Context, domain.Actor, string, domain.ProfilePatch) (*domain.User, error) {
	panic("not used by handlers")
}

func (s *stubAccountService) ChangePassword(context.Context, domain.Actor, string, string, string) error {
	panic("not used by handlers")
}

func (s *stubAccountService) UpdateAccount(ctx context.Context, actor domain.Actor, id string, update ports.AccountUpdate) (*domain.User, error) {
	return s.updateFn(ctx, actor, id, update)
}

func (s *stubAccountService) DeleteOwnAccount(ctx context.Context, actor domain.Actor, id string) error {
	return s.deleteFn(ctx, actor, id)
}

type stubUserService struct {
	registerFn func(ctx context.Context, input ports.CreateUserInput) (*domain.User, error)
	createFn   func(ctx context.Context, actor domain.Actor, input ports.CreateUserInput) (*domain.User, error)
	editFn     func(ctx context.Context, actor domain.Actor, id string, input ports.EditUserInput) (*domain.User, error)
	deleteFn   func(ctx context.Context, actor domain.Actor, id string) error
	listFn     func(ctx context.Context, actor domain.Actor) ([]ports.RoleGroup, error)
}

func (s *stubUserService) Register(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	return s.registerFn(ctx, input)
}

func (s *stubUserService) CreateUser(ctx context.Context, actor domain.Actor, input ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, actor, input)
}

func (s *stubUserService) EditUser(ctx context.Context, actor domain.Actor, id string, input ports.EditUserInput) (*domain.User, error) {
	return s.editFn(ctx, actor, id, input)
}

func (s *stubUserService) DeleteUser(ctx context.Context, actor domain.Actor, id string) error {
	return s.deleteFn(ctx, actor, id)
}

func (s *stubUserService) ListUsersByRole(ctx context.Context, actor domain.Actor) ([]ports.RoleGroup, error) {
	return s.listFn(ctx, actor)
}

type stubRoleService struct {
	roles []domain.Role
}

func (s *stubRoleService) BootstrapFirstUser(context.Context, *domain.User, domain.Role) (domain.Role, error) {
	panic("not used by handlers")
}

func (s *stubRoleService) SetExclusiveRole(context.Context, *domain.User, domain.Role) error {
	panic("not used by handlers")
}

func (s *stubRoleService) ListRoles(context.Context) ([]domain.Role, error) {
	return s.roles, nil
}

type stubAuditViewer struct {
	got     domain.AuditFilter
	entries []domain.AuditLogEntry
}

func (s *stubAuditViewer) Recent(_ context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	s.got = filter
	return s.entries, nil
}

// newContext builds an echo context for method/target with a JSON body.
// A non-zero actor is injected the way the Auth middleware does it.
func newContext(method, target, body string, actor domain.Actor) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if actor.UserID != "" {
		c.Set(middleware.KeyUserID, actor.UserID)
		c.Set(middleware.KeyUsername, actor.Username)
		c.Set(middleware.KeyRole, string(actor.Role))
		c.Set(middleware.KeySessionID, actor.SessionID)
	}
	return c, rec
}

var (
	owner = domain.Actor{UserID: "u-owner", Username: "alice", Role: domain.RoleOwner, SessionID: "s-1"}
	cook  = domain.Actor{UserID: "u-cook", Username: "bob", Role: domain.RoleCook, SessionID: "s-2"}
)
