package core

import (
	"regexp"
	"strings"
	"time"
)

var emailRe = regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`)

type (
	UserPreferences struct {
		Currency string `json:"currency"`
		Language string `json:"language"`
		Theme    string `json:"theme"`
	}

	User struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Email        string          `json:"email"`
		PasswordHash string          `json:"-"`
		Preferences  UserPreferences `json:"preferences"`
		IsActive     bool            `json:"is_active"`
		CreatedAt    time.Time       `json:"created_at"`
		UpdatedAt    time.Time       `json:"updated_at"`
	}
)

// DefaultPreferences returns the preference set assigned at registration.
func DefaultPreferences() UserPreferences {
	return UserPreferences{Currency: "BRL", Language: "pt-BR", Theme: "light"}
}

// ValidateRegistration checks the fields supplied at account creation.
// password is the plaintext candidate, checked before hashing.
func (u User) ValidateRegistration(password string) error {
	ve := &ValidationError{}

	name := strings.TrimSpace(u.Name)
	if name == "" {
		ve.add("name", "is required")
	}
	if len(name) > 100 {
		ve.add("name", "must have at most 100 characters")
	}
	if !emailRe.MatchString(strings.ToLower(strings.TrimSpace(u.Email))) {
		ve.add("email", "is not a valid email address")
	}
	if len(password) < 6 {
		ve.add("password", "must have at least 6 characters")
	}

	return ve.orNil()
}

// NormalizeEmail lowercases and trims an email for case-insensitive
// uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
