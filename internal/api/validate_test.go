package api

import (
	"strings"
	"testing"
)

func TestValidateCallID(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"CA1234567890abcdef1234567890abcdef", true},
		{"9b2f8a4e-6c1d-4f0a-8e3b-2d7c5a1f0e9b", true},
		{"", false},
		{"CA 123", false},
		{"CA<script>", false},
		{strings.Repeat("a", maxCallIDLen+1), false},
	}

	for _, tt := range tests {
		msg := validateCallID("CallSid", tt.value)
		if (msg == "") != tt.ok {
			t.Errorf("validateCallID(%q) = %q, want ok=%v", tt.value, msg, tt.ok)
		}
	}
}

func TestValidateDigits(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"", true},
		{"1", true},
		{"*9#", true},
		{"12a", false},
		{strings.Repeat("1", maxDigitsLen+1), false},
	}

	for _, tt := range tests {
		msg := validateDigits("Digits", tt.value)
		if (msg == "") != tt.ok {
			t.Errorf("validateDigits(%q) = %q, want ok=%v", tt.value, msg, tt.ok)
		}
	}
}
