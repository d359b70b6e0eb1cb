package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vitalstream/internal/database"
	"vitalstream/internal/models"
)

// MongoAggregateStore persists aggregate windows in the aggregates collection.
type MongoAggregateStore struct {
	collection *mongo.Collection
}

// NewMongoAggregateStore creates a new Mongo-backed aggregate store
func NewMongoAggregateStore(mongoDB *database.MongoDB) *MongoAggregateStore {
	return &MongoAggregateStore{
		collection: mongoDB.Database().Collection(database.CollectionAggregates),
	}
}

// InsertAggregate appends one completed window record
func (s *MongoAggregateStore) InsertAggregate(ctx context.Context, agg *models.AggregateWindow) error {
	if _, err := s.collection.InsertOne(ctx, agg); err != nil {
		return fmt.Errorf("failed to insert aggregate window: %w", err)
	}
	return nil
}

// LatestAggregate returns the most recent window for a patient, or nil when
// no cycle has completed yet.
func (s *MongoAggregateStore) LatestAggregate(ctx context.Context, patientID string) (*models.AggregateWindow, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: -1}})

	var agg models.AggregateWindow
	err := s.collection.FindOne(ctx, bson.M{"patient_id": patientID}, opts).Decode(&agg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest aggregate: %w", err)
	}
	return &agg, nil
}

// RecentAggregates returns the newest windows first, at most limit entries
func (s *MongoAggregateStore) RecentAggregates(ctx context.Context, patientID string, limit int) ([]models.AggregateWindow, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"patient_id": patientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent aggregates: %w", err)
	}
	defer cursor.Close(ctx)

	var aggregates []models.AggregateWindow
	if err := cursor.All(ctx, &aggregates); err != nil {
		return nil, fmt.Errorf("failed to decode aggregates: %w", err)
	}
	return aggregates, nil
}
