// -------------------------------------------------------------------------------
// Store - MongoDB User Store
//
// Project: Streamlo
//
// User document persistence. Follow-graph, liked-track and uploaded-track
// mutations fold their precondition into the update filter, so each check and
// write is a single atomic operation and concurrent duplicates lose cleanly.
// -------------------------------------------------------------------------------

package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"

	"github.com/dunguyenn/StreamloWebservice/internal/entity"
	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// -------------------------------------------------------------------------
// MONGO USER STORE
// -------------------------------------------------------------------------

// MongoUserStore implements UserStore on a MongoDB collection.
type MongoUserStore struct {
	coll *mongo.Collection
}

// Compile-time interface check.
var _ UserStore = (*MongoUserStore)(nil)

// NewMongoUserStore creates a user store bound to the users collection.
func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{coll: db.Collection(usersCollection)}
}

// -------------------------------------------------------------------------
// INSERT / LOOKUP
// -------------------------------------------------------------------------

// Insert stores a new user document.
func (s *MongoUserStore) Insert(ctx context.Context, u *entity.User) (primitive.ObjectID, error) {
	const operation = "InsertOne"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "UserStore "+operation)
	defer span.End()

	res, err := s.coll.InsertOne(ctx, u)
	recordOperation(usersCollection, operation, start, err)

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			span.SetStatus(codes.Error, "duplicate key")
			return primitive.NilObjectID, ErrDuplicate
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return primitive.NilObjectID, fmt.Errorf("insert user: %w", err)
	}

	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// FindByID returns the user with the given id.
func (s *MongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*entity.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail returns the user with the given email.
func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByUserURL returns the user with the given profile URL.
func (s *MongoUserStore) FindByUserURL(ctx context.Context, userURL string) (*entity.User, error) {
	return s.findOne(ctx, bson.M{"userURL": userURL})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	const operation = "FindOne"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "UserStore "+operation)
	defer span.End()

	var u entity.User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	recordOperation(usersCollection, operation, start, err)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Find returns a page of users matching the filter plus the total match count.
// Display-name matching is a case-insensitive substring search.
func (s *MongoUserStore) Find(ctx context.Context, f UserFilter, page, perPage int) ([]entity.User, int64, error) {
	const operation = "Find"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "UserStore "+operation)
	defer span.End()

	filter := bson.M{}
	if f.DisplayName != "" {
		filter["displayName"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.DisplayName), Options: "i"}
	}
	if f.City != "" {
		filter["city"] = f.City
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		recordOperation(usersCollection, operation, start, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "displayName", Value: 1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cursor, err := s.coll.Find(ctx, filter, opts)
	recordOperation(usersCollection, operation, start, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, 0, fmt.Errorf("find users: %w", err)
	}

	var users []entity.User
	if err := cursor.All(ctx, &users); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}
	return users, total, nil
}

// -------------------------------------------------------------------------
// PROFILE UPDATES
// -------------------------------------------------------------------------

// UpdateProfile applies the non-empty fields of u to the stored user.
func (s *MongoUserStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, u entity.UserProfileUpdate) error {
	set := bson.M{}
	if u.Email != "" {
		set["email"] = u.Email
	}
	if u.Password != "" {
		set["password"] = u.Password
	}
	if u.UserURL != "" {
		set["userURL"] = u.UserURL
	}
	if u.DisplayName != "" {
		set["displayName"] = u.DisplayName
	}
	if u.City != "" {
		set["city"] = u.City
	}
	if len(set) == 0 {
		return nil
	}

	return s.updateMatched(ctx, "UpdateProfile",
		bson.M{"_id": id},
		bson.M{"$set": set},
	)
}

// SetProfileImage points the user at a new profile image blob.
func (s *MongoUserStore) SetProfileImage(ctx context.Context, id primitive.ObjectID, blobID string) error {
	return s.updateMatched(ctx, "SetProfileImage",
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"profileImageBlobId": blobID}},
	)
}

// Delete removes the user document.
func (s *MongoUserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	const operation = "DeleteOne"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "UserStore "+operation)
	defer span.End()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	recordOperation(usersCollection, operation, start, err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// -------------------------------------------------------------------------
// CONDITIONAL FOLLOW-GRAPH UPDATES
// -------------------------------------------------------------------------

// AddFollowee appends a followee entry and bumps the counter, gated on the
// entry not already being present.
func (s *MongoUserStore) AddFollowee(ctx context.Context, followerID, followeeID primitive.ObjectID) error {
	return s.updateMatched(ctx, "AddFollowee",
		bson.M{"_id": followerID, "followees.userId": bson.M{"$ne": followeeID}},
		bson.M{
			"$push": bson.M{"followees": entity.Followee{UserID: followeeID}},
			"$inc":  bson.M{"numberOfFollowees": 1},
		},
	)
}

// RemoveFollowee pulls a followee entry and decrements the counter, gated on
// the entry being present.
func (s *MongoUserStore) RemoveFollowee(ctx context.Context, followerID, followeeID primitive.ObjectID) error {
	return s.updateMatched(ctx, "RemoveFollowee",
		bson.M{"_id": followerID, "followees.userId": followeeID},
		bson.M{
			"$pull": bson.M{"followees": bson.M{"userId": followeeID}},
			"$inc":  bson.M{"numberOfFollowees": -1},
		},
	)
}

// IncFollowers adjusts the follower counter by delta, gated on the user
// existing.
func (s *MongoUserStore) IncFollowers(ctx context.Context, id primitive.ObjectID, delta int64) error {
	return s.updateMatched(ctx, "IncFollowers",
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"numberOfFollowers": delta}},
	)
}

// -------------------------------------------------------------------------
// CONDITIONAL LIKED-TRACK UPDATES
// -------------------------------------------------------------------------

// AddLikedTrack appends a liked-track entry, gated on the entry not already
// being present.
func (s *MongoUserStore) AddLikedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error {
	return s.updateMatched(ctx, "AddLikedTrack",
		bson.M{"_id": userID, "likedTracks.trackId": bson.M{"$ne": trackID}},
		bson.M{"$push": bson.M{"likedTracks": entity.LikedTrack{TrackID: trackID}}},
	)
}

// RemoveLikedTrack pulls a liked-track entry, gated on the entry being
// present.
func (s *MongoUserStore) RemoveLikedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error {
	return s.updateMatched(ctx, "RemoveLikedTrack",
		bson.M{"_id": userID, "likedTracks.trackId": trackID},
		bson.M{"$pull": bson.M{"likedTracks": bson.M{"trackId": trackID}}},
	)
}

// -------------------------------------------------------------------------
// CONDITIONAL UPLOADED-TRACK UPDATES
// -------------------------------------------------------------------------

// AddUploadedTrack appends an uploaded-track entry and bumps the counter,
// gated on the entry not already being present.
func (s *MongoUserStore) AddUploadedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error {
	return s.updateMatched(ctx, "AddUploadedTrack",
		bson.M{"_id": userID, "uploadedTracks.trackId": bson.M{"$ne": trackID}},
		bson.M{
			"$push": bson.M{"uploadedTracks": entity.UploadedTrack{TrackID: trackID}},
			"$inc":  bson.M{"numberOfTracksUploaded": 1},
		},
	)
}

// RemoveUploadedTrack pulls an uploaded-track entry and decrements the
// counter, gated on the entry being present.
func (s *MongoUserStore) RemoveUploadedTrack(ctx context.Context, userID, trackID primitive.ObjectID) error {
	return s.updateMatched(ctx, "RemoveUploadedTrack",
		bson.M{"_id": userID, "uploadedTracks.trackId": trackID},
		bson.M{
			"$pull": bson.M{"uploadedTracks": bson.M{"trackId": trackID}},
			"$inc":  bson.M{"numberOfTracksUploaded": -1},
		},
	)
}

// -------------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------------

// updateMatched runs a conditional UpdateOne and maps a zero match count to
// ErrNoMatch.
func (s *MongoUserStore) updateMatched(ctx context.Context, operation string, filter, update bson.M) error {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "UserStore "+operation)
	defer span.End()

	res, err := s.coll.UpdateOne(ctx, filter, update)
	recordOperation(usersCollection, operation, start, err)

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			span.SetStatus(codes.Error, "duplicate key")
			return ErrDuplicate
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("%s: %w", operation, err)
	}
	if res.MatchedCount == 0 {
		span.SetStatus(codes.Error, "no match")
		return ErrNoMatch
	}
	return nil
}
