package domain

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLockedOut           = errors.New("account is temporarily locked")
	ErrForbidden           = errors.New("access forbidden")
	ErrTokenInvalid        = errors.New("invalid or expired reset token")
	ErrResetRequestInvalid = errors.New("invalid password reset request")
)

// FieldError is a single message scoped to an input field. Field is empty for
// messages that apply to the request as a whole.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError carries an ordered list of field-scoped messages.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns a ValidationError with a single message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			msgs = append(msgs, f.Message)
			continue
		}
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// With returns a copy of e extended with one more message. e is left unchanged.
func (e *ValidationError) With(field, message string) *ValidationError {
	fields := make([]FieldError, 0, len(e.Fields)+1)
	fields = append(fields, e.Fields...)
	fields = append(fields, FieldError{Field: field, Message: message})
	return &ValidationError{Fields: fields}
}

// ConflictError reports a uniqueness violation on Field at creation time.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrUserExists.Error()
	}
	return e.Field + " already in use"
}

// Is lets errors.Is(err, ErrUserExists) match any ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrUserExists
}

// ToValidation converts err into a ValidationError, keeping field scope where
// the error carries one. Errors without a user-facing meaning become genericMsg.
func ToValidation(err error, genericMsg string) *ValidationError {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return NewValidationError(ce.Field, ce.Error())
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return NewValidationError("old_password", "incorrect password")
	case errors.Is(err, ErrTokenInvalid):
		return NewValidationError("token", ErrTokenInvalid.Error())
	case errors.Is(err, ErrUserNotFound):
		return NewValidationError("", ErrUserNotFound.Error())
	}
	return NewValidationError("", genericMsg)
}

// IsUserFacing reports whether err carries a meaning the caller can act on:
// a field problem, a conflict or one of the credential and token sentinels.
func IsUserFacing(err error) bool {
	var ve *ValidationError
	var ce *ConflictError
	return errors.As(err, &ve) ||
		errors.As(err, &ce) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrUserNotFound)
}

// MergeValidation returns the union of the field messages of errs, in order.
// Nil errors are skipped; nil is returned when nothing remains.
func MergeValidation(genericMsg string, errs ...error) *ValidationError {
	var fields []FieldError
	for _, err := range errs {
		if ve := ToValidation(err, genericMsg); ve != nil {
			fields = append(fields, ve.Fields...)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
