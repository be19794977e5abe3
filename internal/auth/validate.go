package auth

import (
	"regexp"
	"unicode"

	"github.com/avelkov/personachat/internal/common"
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func ValidateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return common.Invalidf("invalid email address")
	}
	return nil
}

func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 20 {
		return common.Invalidf("username must be 3-20 characters")
	}
	if !usernameRe.MatchString(username) {
		return common.Invalidf("username may only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidatePassword enforces the registration password policy: at least 8
// characters with one uppercase letter, one lowercase letter, and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return common.Invalidf("password must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return common.Invalidf("password must contain an uppercase letter")
	}
	if !lower {
		return common.Invalidf("password must contain a lowercase letter")
	}
	if !digit {
		return common.Invalidf("password must contain a digit")
	}
	return nil
}
