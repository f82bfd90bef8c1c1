package handler

import (
	"time"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Request types ---

type profileRequest struct {
	FirstName   string `json:"first_name"   validate:"max=100"`
	LastName    string `json:"last_name"    validate:"max=100"`
	Street      string `json:"street"       validate:"max=200"`
	HouseNumber string `json:"house_number" validate:"max=20"`
	PostalCode  string `json:"postal_code"  validate:"max=20"`
	City        string `json:"city"         validate:"max=100"`
	CountryID   string `json:"country_id"   validate:"max=10"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	profileRequest
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
	profileRequest
}

type editUserRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role"`
	profileRequest
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"            validate:"required"`
	Email           string `json:"email"            validate:"required,email"`
	Password        string `json:"password"         validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type updateAccountRequest struct {
	Email       string `json:"email"        validate:"omitempty,email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
	profileRequest
}

type auditQuery struct {
	ActorID string `json:"actor_id" query:"actor_id"`
	Action  string `json:"action"   query:"action"`
	Limit   int    `json:"limit"    query:"limit"    validate:"min=0,max=500"`
}

// --- Response types ---

type userResponse struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	EmailConfirmed bool           `json:"email_confirmed"`
	Role           string         `json:"role,omitempty"`
	RoleName       string         `json:"role_name,omitempty"`
	Profile        domain.Profile `json:"profile"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

type roleResponse struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

type roleGroupResponse struct {
	Role     string         `json:"role"`
	RoleName string         `json:"role_name"`
	Users    []userResponse `json:"users"`
}

type auditEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
}
