package validation

import (
	"regexp"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Names: letters (any script), spaces, hyphens, apostrophes.
var nameRe = regexp.MustCompile(`^[\p{L}\s\-']+$`)

var languageRe = regexp.MustCompile(`^[a-z]{2}$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires at least 8 characters with one letter and one digit.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func IsValidName(name string) bool {
	return name != "" && nameRe.MatchString(name)
}

// IsValidLanguage accepts a lowercase two-letter language code ("en", "fr").
func IsValidLanguage(code string) bool {
	return languageRe.MatchString(code)
}
