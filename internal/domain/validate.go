package domain

import (
	"fmt"
	"regexp"

	"github.com/wardenhq/warden/internal/apperr"
)

// Password length bounds for local credentials.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 32
)

// emailPattern is the WHATWG HTML5 email production.
var emailPattern = regexp.MustCompile(
	`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`,
)

// ValidateEmail rejects addresses the email pattern does not accept.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apperr.BadRequest("Invalid email address")
	}
	return nil
}

// ValidatePassword enforces the plaintext length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return apperr.BadRequest(fmt.Sprintf(
			"Password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength,
		))
	}
	return nil
}
