// -------------------------------------------------------------------------------
// Store - Metadata Store Interfaces
//
// Project: Streamlo
//
// Interfaces for the document store holding users and tracks. Single-document
// writes are atomic; nothing spanning two documents is. Conditional updates
// carry their precondition in the filter so the check and the write are one
// operation, and a miss is reported as ErrNoMatch for the caller to classify.
// -------------------------------------------------------------------------------

package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dunguyenn/StreamloWebservice/internal/entity"
)

// -------------------------------------------------------------------------
// ERRORS
// -------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("document not found")

	// ErrNoMatch is returned when a conditional update matches no document.
	// The filter folds the precondition into the write, so a miss means
	// either the document is gone or the precondition no longer holds; the
	// caller decides which reading applies.
	ErrNoMatch = errors.New("no document matched update condition")

	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// -------------------------------------------------------------------------
// FILTERS
// -------------------------------------------------------------------------

// UserFilter narrows user queries. Zero-value fields are ignored.
type UserFilter struct {
	DisplayName string
	City        string
}

// TrackFilter narrows track queries. Zero-value fields are ignored.
type TrackFilter struct {
	Title      string
	City       string
	UploaderID primitive.ObjectID
}

// -------------------------------------------------------------------------
// USER STORE
// -------------------------------------------------------------------------

// UserStore defines persistence operations for user documents.
type UserStore interface {
	// Insert stores a new user. Returns ErrDuplicate when the email or
	// user URL is already taken.
	Insert(ctx context.Context, u *entity.User) (primitive.ObjectID, error)

	FindByID(ctx context.Context, id primitive.ObjectID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUserURL(ctx context.Context, userURL string) (*entity.User, error)

	// Find returns a page of users matching the filter plus the unpaged
	// match count.
	Find(ctx context.Context, f UserFilter, page, perPage int) ([]entity.User, int64, error)

	// UpdateProfile applies the non-zero fields of u to the stored user.
	UpdateProfile(ctx context.Context, id primitive.ObjectID, u entity.UserProfileUpdate) error

	// SetProfileImage points the user at a new profile image blob.
	SetProfileImage(ctx context.Context, id primitive.ObjectID, blobID string) error

	Delete(ctx context.Context, id primitive.ObjectID) error

	// --- Conditional follow-graph updates ---

	// AddFollowee appends followeeID to the follower's followee list and
	// bumps its followee counter, in one write gated on the entry not
	// already being present. ErrNoMatch means missing user or duplicate.
	AddFollowee(ctx context.Context, followerID, followeeID primitive.ObjectID) error

	// RemoveFollowee is the inverse, gated on the entry being present.
	RemoveFollowee(ctx context.Context, followerID, followeeID primitive.ObjectID) error

	// IncFollowers adjusts a user's follower counter by delta, gated on
	// the user existing.
	IncFollowers(ctx context.Context, id primitive.ObjectID, delta int64) error

	// --- Conditional liked-track updates ---

	AddLikedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error
	RemoveLikedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error

	// --- Conditional uploaded-track updates ---

	AddUploadedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error
	RemoveUploadedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error
}

// -------------------------------------------------------------------------
// TRACK STORE
// -------------------------------------------------------------------------

// TrackStore defines persistence operations for track documents.
type TrackStore interface {
	// Insert stores a new track. Returns ErrDuplicate when the track URL
	// is already taken.
	Insert(ctx context.Context, t *entity.Track) (primitive.ObjectID, error)

	FindByID(ctx context.Context, id primitive.ObjectID) (*entity.Track, error)
	FindByURL(ctx context.Context, trackURL string) (*entity.Track, error)

	// FindByCommentID returns the track containing the given embedded
	// comment.
	FindByCommentID(ctx context.Context, commentID primitive.ObjectID) (*entity.Track, error)

	// Find returns a page of tracks matching the filter plus the unpaged
	// match count, newest first.
	Find(ctx context.Context, f TrackFilter, page, perPage int) ([]entity.Track, int64, error)

	// Chart returns a page of tracks for a city ordered by like count
	// descending.
	Chart(ctx context.Context, city string, page, perPage int) ([]entity.Track, int64, error)

	UpdateTitle(ctx context.Context, id primitive.ObjectID, title string) error
	UpdateDescription(ctx context.Context, id primitive.ObjectID, description string) error

	Delete(ctx context.Context, id primitive.ObjectID) error

	// IncLikes adjusts a track's like counter by delta, gated on the track
	// existing.
	IncLikes(ctx context.Context, id primitive.ObjectID, delta int64) error

	// AddComment appends a comment and bumps the comment counter in one
	// document write.
	AddComment(ctx context.Context, trackID primitive.ObjectID, c entity.Comment) error

	// RemoveComment pulls a comment and decrements the counter, gated on a
	// comment with that id belonging to authorID. ErrNoMatch covers both a
	// missing comment and an author mismatch.
	RemoveComment(ctx context.Context, trackID, commentID, authorID primitive.ObjectID) error
}
