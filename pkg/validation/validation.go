package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxUserIDLength      = 128
	MaxDescriptionLength = 500
)

var (
	// UserIDRegex validates user ID format
	UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:@-]+$`)
)

// ValidateUserID validates a caller identity
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("user ID is too long (max %d characters)", MaxUserIDLength)
	}
	if !UserIDRegex.MatchString(userID) {
		return fmt.Errorf("invalid user ID format")
	}
	return nil
}

// ValidateSessionID validates session ID
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateDescription validates a free-text slot description. Empty is allowed.
func ValidateDescription(description string) error {
	if !utf8.ValidString(description) {
		return fmt.Errorf("description contains invalid characters")
	}
	return ValidateStringLength(description, 0, MaxDescriptionLength, "description")
}

// ValidateMaxPartners validates the partner capacity of a session
func ValidateMaxPartners(n, min, max int) error {
	if n < min {
		return fmt.Errorf("max partners must be at least %d", min)
	}
	if n > max {
		return fmt.Errorf("max partners is too high (max %d)", max)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
