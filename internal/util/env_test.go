package util

import (
	"testing"
	"time"
)

func TestGetenvDefault(t *testing.T) {
	t.Setenv("JOURNALPIPE_TEST_SET", "value")
	t.Setenv("JOURNALPIPE_TEST_BLANK", "   ")

	if got := GetenvDefault("JOURNALPIPE_TEST_SET", "fallback"); got != "value" {
		t.Errorf("Expected set value, got %q", got)
	}
	if got := GetenvDefault("JOURNALPIPE_TEST_BLANK", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for blank value, got %q", got)
	}
	if got := GetenvDefault("JOURNALPIPE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback for unset variable, got %q", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"garbage", false, false},
		{"garbage", true, true},
	}
	for _, tc := range cases {
		t.Setenv("JOURNALPIPE_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("JOURNALPIPE_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("JOURNALPIPE_TEST_DURATION", "90s")
	if got := ParseDurationEnv("JOURNALPIPE_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("Expected 90s, got %v", got)
	}

	t.Setenv("JOURNALPIPE_TEST_DURATION", "not-a-duration")
	if got := ParseDurationEnv("JOURNALPIPE_TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("Expected default for invalid value, got %v", got)
	}

	t.Setenv("JOURNALPIPE_TEST_DURATION", "")
	if got := ParseDurationEnv("JOURNALPIPE_TEST_DURATION", 5*time.Minute); got != 5*time.Minute {
		t.Errorf("Expected default for unset value, got %v", got)
	}
}
