package security

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrWeakPassword wraps every PasswordPolicy rejection.
var ErrWeakPassword = errors.New("password does not meet requirements")

// PasswordPolicy decides whether a new password is acceptable. The error text is shown to
// the user.
type PasswordPolicy interface {
	Validate(password string) error
}

// StrengthPolicy is a rule-based PasswordPolicy. Rules are checked in field order and the
// first failure is reported.
type StrengthPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy requires 12 characters with upper and lower case letters, a digit
// and a symbol.
func DefaultPasswordPolicy() *StrengthPolicy {
	return &StrengthPolicy{
		MinLength:     12,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

func (p *StrengthPolicy) Validate(password string) error {
	if n := len([]rune(password)); n < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, p.MinLength)
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			symbol = true
		}
	}
	switch {
	case p.RequireUpper && !upper:
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	case p.RequireLower && !lower:
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	case p.RequireDigit && !digit:
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case p.RequireSymbol && !symbol:
		return fmt.Errorf("%w: must contain a symbol", ErrWeakPassword)
	}
	return nil
}
