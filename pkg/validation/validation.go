package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// IdentifierRegex validates organization/campus/building identifiers.
	IdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateIdentifier validates an opaque entity identifier.
func ValidateIdentifier(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(value) > 100 {
		return fmt.Errorf("%s is too long (max 100 characters)", name)
	}
	if !IdentifierRegex.MatchString(value) {
		return fmt.Errorf("%s contains invalid characters (only letters, numbers, _, - allowed)", name)
	}
	return nil
}

// ValidateSeverity validates the 1-10 severity scale.
func ValidateSeverity(severity int) error {
	if severity < 1 || severity > 10 {
		return fmt.Errorf("severity must be between 1 and 10, got %d", severity)
	}
	return nil
}

// ValidateCoordinates validates a latitude/longitude pair.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be in [-90, 90], got %f", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be in [-180, 180], got %f", lng)
	}
	return nil
}

// ValidateTitle validates an issue title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if len(title) > 200 {
		return fmt.Errorf("title is too long (max 200 characters)")
	}
	return nil
}

// ValidateUsername validates a login username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !IdentifierRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}
