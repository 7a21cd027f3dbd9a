// -------------------------------------------------------------------------------
// Store - MongoDB Track Store
//
// Project: Streamlo
//
// Track document persistence. Comments are embedded in the track document so a
// comment mutation and its counter move in one atomic write; comment removal is
// additionally gated on authorship inside the update filter.
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
// MONGO TRACK STORE
// -------------------------------------------------------------------------

// MongoTrackStore implements TrackStore on a MongoDB collection.
type MongoTrackStore struct {
	coll *mongo.Collection
}

// Compile-time interface check.
var _ TrackStore = (*MongoTrackStore)(nil)

// NewMongoTrackStore creates a track store bound to the tracks collection.
func NewMongoTrackStore(db *mongo.Database) *MongoTrackStore {
	return &MongoTrackStore{coll: db.Collection(tracksCollection)}
}

// -------------------------------------------------------------------------
// INSERT / LOOKUP
// -------------------------------------------------------------------------

// Insert stores a new track document.
func (s *MongoTrackStore) Insert(ctx context.Context, t *entity.Track) (primitive.ObjectID, error) {
	const operation = "InsertOne"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "TrackStore "+operation)
	defer span.End()

	res, err := s.coll.InsertOne(ctx, t)
	recordOperation(tracksCollection, operation, start, err)

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			span.SetStatus(codes.Error, "duplicate key")
			return primitive.NilObjectID, ErrDuplicate
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return primitive.NilObjectID, fmt.Errorf("insert track: %w", err)
	}

	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// FindByID returns the track with the given id.
func (s *MongoTrackStore) FindByID(ctx context.Context, id primitive.ObjectID) (*entity.Track, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByURL returns the track with the given stream URL.
func (s *MongoTrackStore) FindByURL(ctx context.Context, trackURL string) (*entity.Track, error) {
	return s.findOne(ctx, bson.M{"trackURL": trackURL})
}

// FindByCommentID returns the track containing the given embedded comment.
func (s *MongoTrackStore) FindByCommentID(ctx context.Context, commentID primitive.ObjectID) (*entity.Track, error) {
	return s.findOne(ctx, bson.M{"comments._id": commentID})
}

func (s *MongoTrackStore) findOne(ctx context.Context, filter bson.M) (*entity.Track, error) {
	const operation = "FindOne"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "TrackStore "+operation)
	defer span.End()

	var t entity.Track
	err := s.coll.FindOne(ctx, filter).Decode(&t)
	recordOperation(tracksCollection, operation, start, err)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("find track: %w", err)
	}
	return &t, nil
}

// Find returns a page of tracks matching the filter plus the total match
// count, newest upload first. Title matching is a case-insensitive substring
// search.
func (s *MongoTrackStore) Find(ctx context.Context, f TrackFilter, page, perPage int) ([]entity.Track, int64, error) {
	filter := bson.M{}
	if f.Title != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Title), Options: "i"}
	}
	if f.City != "" {
		filter["city"] = f.City
	}
	if !f.UploaderID.IsZero() {
		filter["uploaderId"] = f.UploaderID
	}

	sort := bson.D{{Key: "numPlays", Value: -1}, {Key: "dateUploaded", Value: -1}}
	return s.findPage(ctx, "Find", filter, sort, page, perPage)
}

// Chart returns a page of tracks for a city ordered by play count descending.
func (s *MongoTrackStore) Chart(ctx context.Context, city string, page, perPage int) ([]entity.Track, int64, error) {
	filter := bson.M{"city": city}
	sort := bson.D{{Key: "numPlays", Value: -1}, {Key: "dateUploaded", Value: -1}}
	return s.findPage(ctx, "Chart", filter, sort, page, perPage)
}

func (s *MongoTrackStore) findPage(ctx context.Context, operation string, filter bson.M, sort bson.D, page, perPage int) ([]entity.Track, int64, error) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "TrackStore "+operation)
	defer span.End()

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		recordOperation(tracksCollection, operation, start, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("count tracks: %w", err)
	}

	opts := options.Find().
		SetSort(sort).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cursor, err := s.coll.Find(ctx, filter, opts)
	recordOperation(tracksCollection, operation, start, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, 0, fmt.Errorf("find tracks: %w", err)
	}

	var tracks []entity.Track
	if err := cursor.All(ctx, &tracks); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("decode tracks: %w", err)
	}
	return tracks, total, nil
}

// -------------------------------------------------------------------------
// FIELD UPDATES
// -------------------------------------------------------------------------

// UpdateTitle replaces the track title.
func (s *MongoTrackStore) UpdateTitle(ctx context.Context, id primitive.ObjectID, title string) error {
	return s.updateMatched(ctx, "UpdateTitle",
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"title": title}},
	)
}

// UpdateDescription replaces the track description.
func (s *MongoTrackStore) UpdateDescription(ctx context.Context, id primitive.ObjectID, description string) error {
	return s.updateMatched(ctx, "UpdateDescription",
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"description": description}},
	)
}

// Delete removes the track document.
func (s *MongoTrackStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	const operation = "DeleteOne"
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "TrackStore "+operation)
	defer span.End()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	recordOperation(tracksCollection, operation, start, err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("delete track: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncLikes adjusts the like counter by delta, gated on the track existing.
func (s *MongoTrackStore) IncLikes(ctx context.Context, id primitive.ObjectID, delta int64) error {
	return s.updateMatched(ctx, "IncLikes",
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"numLikes": delta}},
	)
}

// -------------------------------------------------------------------------
// COMMENT UPDATES
// -------------------------------------------------------------------------

// AddComment appends a comment and bumps the counter in one document write.
func (s *MongoTrackStore) AddComment(ctx context.Context, trackID primitive.ObjectID, c entity.Comment) error {
	return s.updateMatched(ctx, "AddComment",
		bson.M{"_id": trackID},
		bson.M{
			"$push": bson.M{"comments": c},
			"$inc":  bson.M{"numComments": 1},
		},
	)
}

// RemoveComment pulls a comment and decrements the counter. The filter
// requires a comment with that id authored by authorID, so a non-author
// removal attempt is a no-match, not a partial write.
func (s *MongoTrackStore) RemoveComment(ctx context.Context, trackID, commentID, authorID primitive.ObjectID) error {
	return s.updateMatched(ctx, "RemoveComment",
		bson.M{
			"_id":      trackID,
			"comments": bson.M{"$elemMatch": bson.M{"_id": commentID, "user": authorID}},
		},
		bson.M{
			"$pull": bson.M{"comments": bson.M{"_id": commentID}},
			"$inc":  bson.M{"numComments": -1},
		},
	)
}

// -------------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------------

// updateMatched runs a conditional UpdateOne and maps a zero match count to
// ErrNoMatch.
func (s *MongoTrackStore) updateMatched(ctx context.Context, operation string, filter, update bson.M) error {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "TrackStore "+operation)
	defer span.End()

	res, err := s.coll.UpdateOne(ctx, filter, update)
	recordOperation(tracksCollection, operation, start, err)

	if err != nil {
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
