package util

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/supportdesk/support-server-go/internal/errors"
)

const MaxEmailLength = 254

var (
	emailRegex          = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	organizationIDRegex = regexp.MustCompile(`^org_[a-zA-Z0-9]+$`)
)

// ValidateEmail checks a visitor email and returns the trimmed form.
func ValidateEmail(email string) (string, error) {
	if email == "" {
		return "", apperrors.ValidationError("Email is required")
	}

	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", apperrors.ValidationError("Email cannot be empty")
	}
	if len(trimmed) > MaxEmailLength {
		return "", apperrors.ValidationError("Email is too long (max 254 characters)")
	}
	if !emailRegex.MatchString(trimmed) {
		return "", apperrors.ValidationError("Invalid email format")
	}
	return trimmed, nil
}

func ValidateOrganizationID(organizationID string) error {
	if !organizationIDRegex.MatchString(organizationID) {
		return apperrors.ValidationError(
			"Invalid organization ID format. Must start with 'org_' followed by alphanumeric characters.",
		)
	}
	return nil
}

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

