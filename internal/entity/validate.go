// -------------------------------------------------------------------------------
// Entity Validation - Field Constraints and Enumerations
//
// Project: Streamlo
//
// Field-level validation shared by the signup, update, and upload paths. Limits
// and enumerations mirror the persisted schema: city and genre are closed sets,
// URLs are slug-like, and the upload date must sit within a 30 minute window of
// server time.
// -------------------------------------------------------------------------------

package entity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// -------------------------------------------------------------------------
// LIMITS AND ENUMERATIONS
// -------------------------------------------------------------------------

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 4000
	MaxUserURLLen     = 20
	MaxDisplayNameLen = 20
	MinTrackURLLen    = 3
	MaxTrackURLLen    = 255
	MinPasswordLen    = 8
	MaxPasswordLen    = 50

	// DateUploadedWindow bounds how far an upload timestamp may drift from
	// server time in either direction.
	DateUploadedWindow = 30 * time.Minute
)

// Genres is the closed set of accepted track genres.
var Genres = []string{"Pop", "Rock", "Dance", "Country", "Alternative"}

// Cities is the closed set of accepted cities.
var Cities = []string{"Belfast", "Derry"}

var (
	trackURLPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]*$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidGenre reports whether g is an accepted genre.
func ValidGenre(g string) bool {
	for _, v := range Genres {
		if v == g {
			return true
		}
	}
	return false
}

// ValidCity reports whether c is an accepted city.
func ValidCity(c string) bool {
	for _, v := range Cities {
		if v == c {
			return true
		}
	}
	return false
}

// -------------------------------------------------------------------------
// FIELD VALIDATORS
// -------------------------------------------------------------------------

// ValidateEmail checks shape only; uniqueness is enforced by the store index.
// The address is case-folded before persistence.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// NormalizeEmail case-folds an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(email)
}

// ValidatePassword checks the cleartext password length constraints before
// hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password is under the minimum length of %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password is over the maximum length of %d characters", MaxPasswordLen)
	}
	return nil
}

// ValidateUserURL checks the unique user slug.
func ValidateUserURL(userURL string) error {
	if userURL == "" {
		return fmt.Errorf("userURL is required")
	}
	if len(userURL) > MaxUserURLLen {
		return fmt.Errorf("userURL exceeds maximum length of %d characters", MaxUserURLLen)
	}
	return nil
}

// ValidateDisplayName checks the display name constraints.
func ValidateDisplayName(name string) error {
	if name == "" {
		return fmt.Errorf("displayName is required")
	}
	if len(name) > MaxDisplayNameLen {
		return fmt.Errorf("display name exceeds maximum length of %d characters", MaxDisplayNameLen)
	}
	return nil
}

// ValidateCity checks membership of the city enumeration.
func ValidateCity(city string) error {
	if !ValidCity(city) {
		return fmt.Errorf("invalid city, valid cities include %s", strings.Join(Cities, " or "))
	}
	return nil
}

// ValidateTitle checks the track title constraints.
func ValidateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("track title is required")
	}
	if len(title) > MaxTitleLen {
		return fmt.Errorf("track title exceeds maximum length of %d characters", MaxTitleLen)
	}
	return nil
}

// ValidateDescription checks the track description constraints.
func ValidateDescription(desc string) error {
	if len(desc) > MaxDescriptionLen {
		return fmt.Errorf("description exceeds maximum length of %d characters", MaxDescriptionLen)
	}
	return nil
}

// ValidateTrackURL checks the unique track slug: 3-255 characters, limited to
// letters, numbers, underscores and hyphens.
func ValidateTrackURL(trackURL string) error {
	if len(trackURL) < MinTrackURLLen || len(trackURL) > MaxTrackURLLen {
		return fmt.Errorf("trackURL must be between %d and %d characters", MinTrackURLLen, MaxTrackURLLen)
	}
	if !trackURLPattern.MatchString(trackURL) {
		return fmt.Errorf("trackURL may only contain letters, numbers, underscores and hyphens")
	}
	return nil
}

// ValidateDateUploaded rejects timestamps outside the accepted window around
// server time.
func ValidateDateUploaded(d time.Time, now time.Time) error {
	if d.After(now.Add(DateUploadedWindow)) || d.Before(now.Add(-DateUploadedWindow)) {
		return fmt.Errorf("dateUploaded must be within %s of server time", DateUploadedWindow)
	}
	return nil
}

// ValidateGenre checks membership of the genre enumeration.
func ValidateGenre(genre string) error {
	if !ValidGenre(genre) {
		return fmt.Errorf("invalid genre, valid genres include %s", strings.Join(Genres, ", "))
	}
	return nil
}
