package entity

import (
	"strings"
	"testing"
	"time"
)

func TestValidateTrackURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid slug", "my-track_01", false},
		{"minimum length", "abc", false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 256), true},
		{"spaces rejected", "my track", true},
		{"slashes rejected", "a/b/c", true},
	}

	for _, tt := range tests {
		err := ValidateTrackURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateTrackURL(%q) error = %v, wantErr %v", tt.name, tt.url, err, tt.wantErr)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Error("password under 8 characters should be rejected")
	}
	if err := ValidatePassword(strings.Repeat("x", 51)); err == nil {
		t.Error("password over 50 characters should be rejected")
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}
}

func TestValidateCityAndGenre(t *testing.T) {
	if err := ValidateCity("Belfast"); err != nil {
		t.Errorf("Belfast should be valid: %v", err)
	}
	if err := ValidateCity("London"); err == nil {
		t.Error("London should be rejected")
	}
	if err := ValidateGenre("Rock"); err != nil {
		t.Errorf("Rock should be valid: %v", err)
	}
	if err := ValidateGenre("Jazz"); err == nil {
		t.Error("Jazz should be rejected")
	}
}

func TestValidateDateUploaded(t *testing.T) {
	now := time.Now()

	if err := ValidateDateUploaded(now.Add(-10*time.Minute), now); err != nil {
		t.Errorf("timestamp within window rejected: %v", err)
	}
	if err := ValidateDateUploaded(now.Add(-time.Hour), now); err == nil {
		t.Error("timestamp an hour in the past should be rejected")
	}
	if err := ValidateDateUploaded(now.Add(time.Hour), now); err == nil {
		t.Error("timestamp an hour in the future should be rejected")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("User@Example.COM"); got != "user@example.com" {
		t.Errorf("NormalizeEmail = %q, want case-folded", got)
	}
}
