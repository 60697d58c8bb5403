package util

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		// Simple units
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},

		// Sub-second
		{"50ms", 50 * time.Millisecond, false},
		{"500us", 500 * time.Microsecond, false},

		// Standard Go compound durations
		{"1h30m", 90 * time.Minute, false},
		{"2h30m15s", 2*time.Hour + 30*time.Minute + 15*time.Second, false},

		// Edge cases
		{"0", 0, false},
		{"0s", 0, false},
		{"-1s", -time.Second, false},

		// Errors
		{"", 0, true},
		{"s", 0, true},
		{"abc", 0, true},
		{"1x", 0, true},
		{"1.5d", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDuration(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseDuration(%q) expected error, got %v", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseDuration(%q) unexpected error: %v", tc.input, err)
				return
			}
			if got != tc.expected {
				t.Errorf("ParseDuration(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}
