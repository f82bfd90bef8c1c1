package domain

import "strings"

// Role is one of the fixed staff roles.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleCook        Role = "cook"
	RoleWaiter      Role = "waiter"
	RoleRoomManager Role = "room_manager"
	RoleUser        Role = "user"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleOwner, RoleCook, RoleWaiter, RoleRoomManager, RoleUser}

var roleDisplayNames = map[Role]string{
	RoleOwner:       "Owner",
	RoleCook:        "Kok",
	RoleWaiter:      "Ober",
	RoleRoomManager: "Zaalverantwoordelijke",
	RoleUser:        "Gebruiker",
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleDisplayNames[r]
	return ok
}

// DisplayName returns the name shown to staff, e.g. "Kok" for RoleCook.
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}

func (r Role) String() string {
	return string(r)
}

// ParseRole resolves a role from its key ("cook") or display name ("Kok"),
// ignoring case and surrounding whitespace. An empty input yields ("", nil).
func ParseRole(name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	for _, r := range AllRoles {
		if strings.EqualFold(name, string(r)) || strings.EqualFold(name, roleDisplayNames[r]) {
			return r, nil
		}
	}
	return "", NewValidationError("role", "unknown role "+name)
}
