package utils

import (
	"fmt"
	"strings"
)

// ValidateNonEmpty checks if a string is not empty after trimming
func ValidateNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateNonNegativeInt checks if an integer is zero or greater
func ValidateNonNegativeInt(value int, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s must not be negative, got: %d", fieldName, value)
	}
	return nil
}

// ValidateOneOf checks if a value is one of the allowed values
func ValidateOneOf(value string, allowed []string, fieldName string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}

	return fmt.Errorf("%s must be one of %v, got: %s",
		fieldName, allowed, value)
}
