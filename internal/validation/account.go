// Package validation holds input rules shared by services and handlers.
package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
	MaxEmailLength    = 254
	MaxNameLength     = 100

	// MinDescriptionLength is one more than the markup an empty rich-text
	// editor submits ("<p><br></p>").
	MinDescriptionLength = 12
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return errors.New("email is required")
	}
	if len(email) > MaxEmailLength {
		return errors.New("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return errors.New("email is invalid")
	}
	return nil
}

// ValidatePassword checks the trimmed length of password.
func ValidatePassword(password string) error {
	trimmed := strings.TrimSpace(password)
	if len(trimmed) < MinPasswordLength {
		return errors.New("Password should be at least 6 characters.")
	}
	if len(password) > MaxPasswordLength {
		return errors.New("Password is too long.")
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return errors.New("name is too long")
	}
	return nil
}

// StripTags removes HTML tags and surrounding whitespace.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// HasDescriptionContent reports whether an edited description carries text
// beyond the editor's empty-content markup.
func HasDescriptionContent(description string) bool {
	if len(description) < MinDescriptionLength {
		return false
	}
	text := strings.ReplaceAll(StripTags(description), "&nbsp;", "")
	return strings.TrimSpace(text) != ""
}
