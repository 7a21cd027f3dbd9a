// -------------------------------------------------------------------------------
// Entities - User and Track Documents
//
// Project: Streamlo
//
// Document types persisted in MongoDB. Counters are denormalized and mutated only
// by saga steps; relationship arrays store the related id and nothing else. Blob
// ids are opaque identifiers assigned by the blob store and referenced by value.
// -------------------------------------------------------------------------------

package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// -------------------------------------------------------------------------
// USER
// -------------------------------------------------------------------------

// User is a platform account. Password holds the bcrypt hash and is never
// serialized in API responses.
type User struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                  string             `bson:"email" json:"email"`
	Password               string             `bson:"password" json:"-"`
	UserURL                string             `bson:"userURL" json:"userURL"`
	DisplayName            string             `bson:"displayName" json:"displayName"`
	City                   string             `bson:"city" json:"city"`
	NumberOfFollowers      int64              `bson:"numberOfFollowers" json:"numberOfFollowers"`
	NumberOfFollowees      int64              `bson:"numberOfFollowees" json:"numberOfFollowees"`
	NumberOfTracksUploaded int64              `bson:"numberOfTracksUploaded" json:"numberOfTracksUploaded"`
	ProfileImageBlobID     string             `bson:"profileImageBlobId,omitempty" json:"profileImageBlobId,omitempty"`
	LikedTracks            []LikedTrack       `bson:"likedTracks" json:"likedTracks"`
	Followees              []Followee         `bson:"followees" json:"followees"`
	UploadedTracks         []UploadedTrack    `bson:"uploadedTracks" json:"uploadedTracks"`
}

// LikedTrack is one entry in a user's likedTracks array.
type LikedTrack struct {
	TrackID primitive.ObjectID `bson:"trackId" json:"trackId"`
}

// Followee is one entry in a user's followees array.
type Followee struct {
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
}

// UploadedTrack is one entry in a user's uploadedTracks array.
type UploadedTrack struct {
	TrackID primitive.ObjectID `bson:"trackId" json:"trackId"`
}

// UserProfileUpdate carries the mutable profile fields for a partial update.
// Empty fields are left unchanged. Password must already be hashed.
type UserProfileUpdate struct {
	Email       string
	Password    string
	UserURL     string
	DisplayName string
	City        string
}

// -------------------------------------------------------------------------
// TRACK
// -------------------------------------------------------------------------

// Track is an uploaded audio track. TrackBinaryID is required once creation
// completes; AlbumArtBlobID is optional. Comments are embedded so that comment
// mutations and NumComments stay in a single atomic document write.
type Track struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Genre          string             `bson:"genre" json:"genre"`
	Description    string             `bson:"description" json:"description"`
	TrackURL       string             `bson:"trackURL" json:"trackURL"`
	City           string             `bson:"city" json:"city"`
	NumPlays       int64              `bson:"numPlays" json:"numPlays"`
	NumLikes       int64              `bson:"numLikes" json:"numLikes"`
	NumComments    int64              `bson:"numComments" json:"numComments"`
	UploaderID     primitive.ObjectID `bson:"uploaderId" json:"uploaderId"`
	DateUploaded   time.Time          `bson:"dateUploaded" json:"dateUploaded"`
	TrackBinaryID  string             `bson:"trackBinaryId" json:"trackBinaryId"`
	AlbumArtBlobID string             `bson:"albumArtBlobId,omitempty" json:"albumArtBlobId,omitempty"`
	Comments       []Comment          `bson:"comments" json:"comments"`
}

// Comment is an embedded comment on a track.
type Comment struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	User       primitive.ObjectID `bson:"user" json:"user"`
	DatePosted time.Time          `bson:"datePosted" json:"datePosted"`
	Body       string             `bson:"body" json:"body"`
}
