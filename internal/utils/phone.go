package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	phoneStripper = regexp.MustCompile(`[^\d+]`)
)

func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phoneStripper.ReplaceAllString(phone, ""))
}

// NormalizePhone strips formatting and prefixes the default country code
// when the number carries none.
func NormalizePhone(phone, countryCode string) string {
	normalized := phoneStripper.ReplaceAllString(phone, "")
	if strings.HasPrefix(normalized, "+") {
		return normalized
	}
	return "+" + strings.TrimPrefix(countryCode, "+") + normalized
}

func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
