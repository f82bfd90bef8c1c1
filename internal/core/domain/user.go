package domain

import "time"

// Profile holds the personal fields a user can edit on their account.
type Profile struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	CountryID   string `json:"country_id,omitempty"`
}

// User models a staff account. The credential hash never leaves the store.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	PasswordHash   string    `json:"-"`
	Roles          []Role    `json:"roles"`
	Profile        Profile   `json:"profile"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PrimaryRole returns the user's single active role, or "" when none is assigned.
func (u *User) PrimaryRole() Role {
	if u == nil || len(u.Roles) == 0 {
		return ""
	}
	return u.Roles[0]
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID    string
	Username  string
	Role      Role
	SessionID string
}

// IsOwner reports whether the actor holds the Owner role.
func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}

// ProfilePatch carries a partial profile update. Empty fields leave the
// existing value untouched.
type ProfilePatch struct {
	Email       string
	FirstName   string
	LastName    string
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
	CountryID   string
}

// Apply copies every non-empty patch field onto the profile. Email is handled
// separately by the caller because it goes through its own store call.
func (p ProfilePatch) Apply(profile *Profile) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&profile.FirstName, p.FirstName)
	set(&profile.LastName, p.LastName)
	set(&profile.Street, p.Street)
	set(&profile.HouseNumber, p.HouseNumber)
	set(&profile.PostalCode, p.PostalCode)
	set(&profile.City, p.City)
	set(&profile.CountryID, p.CountryID)
}
