package service

import (
	"context"
	"errors"
	"testing"

	"github.com/tafelzaak/identity/internal/core/domain"
)

func TestRoleService_BootstrapFirstUser_CountFallback(t *testing.T) {
	f := newFixture()
	first := f.store.seed("admin", "admin@example.com", "Secret1!")

	role, err := f.roles.BootstrapFirstUser(context.Background(), first, domain.RoleUser)
	if err != nil {
		t.Fatalf("BootstrapFirstUser returned error: %v", err)
	}
	if role != domain.RoleOwner {
		t.Fatalf("first user should be owner, got %s", role)
	}
	if got := f.store.rolesOf(first.ID); len(got) != 1 || got[0] != domain.RoleOwner {
		t.Fatalf("unexpected stored roles: %v", got)
	}

	second := f.store.seed("bob", "bob@example.com", "Secret1!")
	role, err = f.roles.BootstrapFirstUser(context.Background(), second, "")
	if err != nil {
		t.Fatalf("BootstrapFirstUser returned error: %v", err)
	}
	if role != domain.RoleUser {
		t.Fatalf("empty request should default to user, got %s", role)
	}
}

func TestRoleService_BootstrapFirstUser_Atomic(t *testing.T) {
	base := newStubStore()
	store := &atomicStore{stubStore: base}
	f := newFixtureWith(base, store)

	a := base.seed("a", "a@example.com", "Secret1!")
	b := base.seed("b", "b@example.com", "Secret1!")

	// Both users exist before either is bootstrapped, so a count check would
	// make neither the owner.
	ra, err := f.roles.BootstrapFirstUser(context.Background(), a, domain.RoleCook)
	if err != nil || ra != domain.RoleOwner {
		t.Fatalf("expected owner for the first claim, got %s (%v)", ra, err)
	}
	rb, err := f.roles.BootstrapFirstUser(context.Background(), b, domain.RoleCook)
	if err != nil || rb != domain.RoleCook {
		t.Fatalf("expected requested role for the second claim, got %s (%v)", rb, err)
	}
	if store.exclusive != 1 {
		t.Fatalf("expected the atomic setter to be used once, got %d", store.exclusive)
	}
}

func TestRoleService_SetExclusiveRole(t *testing.T) {
	tests := []struct {
		name    string
		initial []domain.Role
		role    domain.Role
		want    []domain.Role
	}{
		{"replace", []domain.Role{domain.RoleWaiter}, domain.RoleCook, []domain.Role{domain.RoleCook}},
		{"clear", []domain.Role{domain.RoleWaiter}, "", nil},
		{"collapse accumulated", []domain.Role{domain.RoleWaiter, domain.RoleUser}, domain.RoleOwner, []domain.Role{domain.RoleOwner}},
		{"from none", nil, domain.RoleRoomManager, []domain.Role{domain.RoleRoomManager}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			u := f.store.seed("carol", "carol@example.com", "Secret1!", tt.initial...)

			if err := f.roles.SetExclusiveRole(context.Background(), u, tt.role); err != nil {
				t.Fatalf("SetExclusiveRole returned error: %v", err)
			}
			got := f.store.rolesOf(u.ID)
			if len(got) != len(tt.want) {
				t.Fatalf("got roles %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got roles %v, want %v", got, tt.want)
				}
			}
			if len(u.Roles) > 1 {
				t.Fatalf("user carries more than one role: %v", u.Roles)
			}
		})
	}
}

func TestRoleService_SetExclusiveRole_UnknownRole(t *testing.T) {
	f := newFixture()
	u := f.store.seed("carol", "carol@example.com", "Secret1!", domain.RoleWaiter)

	err := f.roles.SetExclusiveRole(context.Background(), u, domain.Role("janitor"))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Fields[0].Field != "role" {
		t.Fatalf("expected a role validation error, got %v", err)
	}
}
