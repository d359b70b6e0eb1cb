package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vitalstream/internal/database"
	"vitalstream/internal/models"
)

// MongoSampleStore is the append-only vital sample repository backed by the
// vitals collection.
type MongoSampleStore struct {
	collection *mongo.Collection
}

// NewMongoSampleStore creates a new Mongo-backed sample store
func NewMongoSampleStore(mongoDB *database.MongoDB) *MongoSampleStore {
	return &MongoSampleStore{
		collection: mongoDB.Database().Collection(database.CollectionVitals),
	}
}

// InsertSample appends one immutable sample
func (s *MongoSampleStore) InsertSample(ctx context.Context, sample *models.VitalSample) error {
	if _, err := s.collection.InsertOne(ctx, sample); err != nil {
		return fmt.Errorf("failed to insert vital sample: %w", err)
	}
	return nil
}

// ListSamples returns a patient's samples in [start, end), timestamp ascending
func (s *MongoSampleStore) ListSamples(ctx context.Context, patientID string, start, end time.Time) ([]models.VitalSample, error) {
	filter := bson.M{
		"patient_id": patientID,
		"timestamp":  bson.M{"$gte": start, "$lt": end},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer cursor.Close(ctx)

	var samples []models.VitalSample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	return samples, nil
}

// RecentValues returns the newest non-missing readings of one metric field,
// newest first.
func (s *MongoSampleStore) RecentValues(ctx context.Context, patientID, field string, limit int) ([]float64, error) {
	filter := bson.M{
		"patient_id": patientID,
		field:        bson.M{"$ne": nil},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{field: 1})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent %s values: %w", field, err)
	}
	defer cursor.Close(ctx)

	values := make([]float64, 0, limit)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s value: %w", field, err)
		}
		switch v := doc[field].(type) {
		case float64:
			values = append(values, v)
		case int32:
			values = append(values, float64(v))
		case int64:
			values = append(values, float64(v))
		}
	}
	return values, cursor.Err()
}
