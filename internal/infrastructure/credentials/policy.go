package credentials

import (
	"fmt"
	"unicode"

	"github.com/tafelzaak/identity/internal/core/domain"
)

// PasswordPolicy lists the character classes a password must contain.
type PasswordPolicy struct {
	MinLength        int
	MaxBytes         int
	RequireDigit     bool
	RequireLower     bool
	RequireUpper     bool
	RequireNonAlnum  bool
	MinUniqueSymbols int
}

// DefaultPasswordPolicy is six characters with a digit, a lower case letter,
// an upper case letter and a symbol. MaxBytes is bcrypt's input limit.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:        6,
	MaxBytes:         72,
	RequireDigit:     true,
	RequireLower:     true,
	RequireUpper:     true,
	RequireNonAlnum:  true,
	MinUniqueSymbols: 1,
}

// Validate returns every rule password breaks, in a fixed order, on the given
// field. It returns nil for a valid password.
func (p PasswordPolicy) Validate(field, password string) *domain.ValidationError {
	var (
		digit, lower, upper, other bool
		unique                     = make(map[rune]struct{})
	)
	for _, r := range password {
		unique[r] = struct{}{}
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r):
			other = true
		}
	}

	var fields []domain.FieldError
	add := func(msg string) {
		fields = append(fields, domain.FieldError{Field: field, Message: msg})
	}
	if len([]rune(password)) < p.MinLength {
		add(fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	if p.MaxBytes > 0 && len(password) > p.MaxBytes {
		add(fmt.Sprintf("password must be at most %d bytes", p.MaxBytes))
	}
	if p.RequireNonAlnum && !other {
		add("password must contain a non-alphanumeric character")
	}
	if p.RequireDigit && !digit {
		add("password must contain a digit ('0'-'9')")
	}
	if p.RequireLower && !lower {
		add("password must contain a lowercase letter ('a'-'z')")
	}
	if p.RequireUpper && !upper {
		add("password must contain an uppercase letter ('A'-'Z')")
	}
	if len(unique) < p.MinUniqueSymbols {
		add(fmt.Sprintf("password must use at least %d different characters", p.MinUniqueSymbols))
	}

	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: fields}
}
