// -------------------------------------------------------------------------------
// Store - MongoDB Connection
//
// Project: Streamlo
//
// Client construction and index setup for the MongoDB metadata store. Unique
// indexes back the duplicate detection the insert paths rely on; without them
// ErrDuplicate could never fire and identity fields would silently collide.
// -------------------------------------------------------------------------------

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dunguyenn/StreamloWebservice/internal/config"
	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// -------------------------------------------------------------------------
// CONSTANTS
// -------------------------------------------------------------------------

const (
	usersCollection  = "users"
	tracksCollection = "tracks"
)

// -------------------------------------------------------------------------
// CONNECTION
// -------------------------------------------------------------------------

// Connect establishes a MongoDB client and verifies the connection with a
// ping before returning.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.ConnectionString()).
		SetMaxPoolSize(cfg.MaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the unique indexes for identity fields. Safe to call
// on every startup; existing indexes are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "userURL", Value: 1}}, Options: unique},
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	trackIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trackURL", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "city", Value: 1}, {Key: "numPlays", Value: -1}}},
	}
	if _, err := db.Collection(tracksCollection).Indexes().CreateMany(ctx, trackIndexes); err != nil {
		return fmt.Errorf("create track indexes: %w", err)
	}

	return nil
}

// -------------------------------------------------------------------------
// METRICS HELPER
// -------------------------------------------------------------------------

// recordOperation updates Prometheus metrics for a store operation.
func recordOperation(collection, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	telemetry.StoreRequestsTotal.WithLabelValues(collection, operation, status).Inc()
	telemetry.StoreDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
}
