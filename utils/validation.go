// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

// Allows + prefix followed by up to 15 digits
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone strips formatting characters, keeping a leading '+'.
func NormalizePhone(phone string) string {
	return phoneCleaner.Replace(strings.TrimSpace(phone))
}

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}
