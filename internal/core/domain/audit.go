package domain

import "time"

// UnknownActor is recorded when the acting user cannot be resolved.
const UnknownActor = "Onbekend"

// Audit action labels.
const (
	ActionLoginSucceeded  = "Login succesvol"
	ActionLoginFailed     = "Login mislukt"
	ActionLoginLockedOut  = "Login geblokkeerd"
	ActionLogout          = "Logout"
	ActionForgotPassword  = "Wachtwoord vergeten"
	ActionResetSucceeded  = "Reset wachtwoord succesvol"
	ActionResetFailed     = "Reset wachtwoord mislukt"
	ActionAccountDeleted  = "Account verwijderd"
	ActionAccountUpdated  = "Account bijgewerkt"
	ActionPasswordChanged = "Wachtwoord gewijzigd"
	ActionRegistered      = "Registratie"
	ActionUserCreated     = "Gebruiker aangemaakt"
	ActionUserEdited      = "Gebruiker bewerkt"
	ActionUserDeleted     = "Gebruiker verwijderd"
)

// AuditLogEntry is an immutable record of a security-relevant action.
type AuditLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
}

// AuditFilter narrows an audit listing. Zero values mean "no filter".
type AuditFilter struct {
	ActorID string
	Action  string
	Limit   int
}
