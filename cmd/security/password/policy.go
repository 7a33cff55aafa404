package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate applies the registration policy. Length is counted in runes.
func (c Config) Validate(plain string) error {
	n := utf8.RuneCountInString(plain)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && trivial(plain):
		return ErrWeakPassword
	}
	return nil
}

// Message is the field message the register endpoint shows for a policy error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		return "Password is too short"
	case errors.Is(err, ErrPasswordTooLong):
		return "Password is too long"
	case errors.Is(err, ErrWeakPassword):
		return "Password is too weak"
	default:
		return "Password does not meet requirements"
	}
}

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"letmein":     {},
	"taskmanager": {},
}

// trivial catches only the obvious: one repeated rune, short PINs and a
// handful of common passwords.
func trivial(plain string) bool {
	s := strings.TrimSpace(plain)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}
	if strings.Count(s, string([]rune(s)[:1])) == utf8.RuneCountInString(s) {
		return true
	}
	return utf8.RuneCountInString(s) < 12 && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}
