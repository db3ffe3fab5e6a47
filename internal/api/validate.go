package api

import (
	"regexp"
)

// maxCallIDLen bounds provider call identifiers and correlation IDs.
const maxCallIDLen = 128

// maxDigitsLen bounds the keypad input accepted in one turn.
const maxDigitsLen = 32

// callIDRe matches provider call SIDs ("CA" + 32 hex) and UUIDs, plus the
// other token shapes providers use.
var callIDRe = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)

// digitsRe validates keypad input: digits, star and pound.
var digitsRe = regexp.MustCompile(`^[0-9*#]*$`)

// validateCallID checks a provider call identifier.
// Returns an error message if invalid, empty string if OK.
func validateCallID(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if len(value) > maxCallIDLen {
		return field + " exceeds maximum length"
	}
	if !callIDRe.MatchString(value) {
		return field + " contains invalid characters"
	}
	return ""
}

// validateDigits reports keypad input that no keypad can produce. Empty
// input is well-formed; it is how a gather that timed out reports back.
func validateDigits(field, value string) string {
	if len(value) > maxDigitsLen {
		return field + " exceeds maximum length"
	}
	if !digitsRe.MatchString(value) {
		return field + " must contain only 0-9, * and #"
	}
	return ""
}
