package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBLedgerRepository implements LedgerRepository using MongoDB.
// Writes that append redemptions run in a multi-document transaction, which
// requires a replica set deployment.
type MongoDBLedgerRepository struct {
	client      *mongo.Client
	db          *mongo.Database
	ledgers     *mongo.Collection
	redemptions *mongo.Collection
}

// mongoLedgerDocument represents a ledger document in MongoDB.
type mongoLedgerDocument struct {
	UserID        string      `bson:"_id"`
	Doc           interface{} `bson:"doc"` // Stores parsed JSON as BSON
	Version       int64       `bson:"version"`
	LifetimeTotal int64       `bson:"lifetime_total"`
	UpdatedAt     time.Time   `bson:"updated_at"`
}

// NewMongoDBLedgerRepository creates a new MongoDB ledger repository.
func NewMongoDBLedgerRepository(uri, database, ledgerCollection, redemptionCollection string) (*MongoDBLedgerRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	ledgers := db.Collection(ledgerCollection)
	redemptions := db.Collection(redemptionCollection)

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{ledgers, mongo.IndexModel{Keys: bson.D{{Key: "lifetime_total", Value: -1}, {Key: "_id", Value: 1}}}},
		{redemptions, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			logger.Warn("[MongoDB] failed to create index on %s: %v", idx.coll.Name(), err)
		}
	}

	logger.Info("[MongoDB] Connected to %s/%s", database, ledgerCollection)
	return &MongoDBLedgerRepository{
		client:      client,
		db:          db,
		ledgers:     ledgers,
		redemptions: redemptions,
	}, nil
}

// GetDocument retrieves the ledger document of a user.
func (r *MongoDBLedgerRepository) GetDocument(ctx context.Context, userID string) (*model.LedgerDocument, error) {
	var doc mongoLedgerDocument
	err := r.ledgers.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger document: %w", err)
	}
	return doc.toModel()
}

// CommitDocument performs a versioned write plus any redemption appends.
func (r *MongoDBLedgerRepository) CommitDocument(ctx context.Context, doc model.LedgerDocument, expectedVersion int64, redemptions ...model.RedemptionRecord) error {
	// Parse JSON to interface{} for proper BSON conversion
	var body interface{}
	if err := json.Unmarshal(doc.Body, &body); err != nil {
		return fmt.Errorf("failed to parse ledger JSON: %w", err)
	}

	write := func(ctx context.Context) error {
		if expectedVersion == 0 {
			_, err := r.ledgers.InsertOne(ctx, mongoLedgerDocument{
				UserID:        doc.UserID,
				Doc:           body,
				Version:       1,
				LifetimeTotal: doc.LifetimeTotal,
				UpdatedAt:     doc.UpdatedAt,
			})
			if mongo.IsDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			if err != nil {
				return fmt.Errorf("failed to insert ledger document %s: %w", doc.UserID, err)
			}
		} else {
			filter := bson.M{"_id": doc.UserID, "version": expectedVersion}
			update := bson.M{
				"$set": bson.M{
					"doc":            body,
					"lifetime_total": doc.LifetimeTotal,
					"updated_at":     doc.UpdatedAt,
				},
				"$inc": bson.M{"version": 1},
			}
			res, err := r.ledgers.UpdateOne(ctx, filter, update)
			if err != nil {
				return fmt.Errorf("failed to update ledger document %s: %w", doc.UserID, err)
			}
			if res.MatchedCount == 0 {
				return ErrVersionConflict
			}
		}

		for _, rec := range redemptions {
			if _, err := r.redemptions.InsertOne(ctx, rec); err != nil {
				return fmt.Errorf("failed to append redemption %s: %w", rec.ID, err)
			}
		}
		return nil
	}

	if len(redemptions) == 0 {
		return write(ctx)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, write(sc)
	})
	return err
}

// TopByLifetime returns the highest lifetime totals.
func (r *MongoDBLedgerRepository) TopByLifetime(ctx context.Context, limit int) ([]model.LedgerDocument, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lifetime_total", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

// ScanDocuments pages through all ledger documents ordered by user id.
func (r *MongoDBLedgerRepository) ScanDocuments(ctx context.Context, afterUserID string, limit int) ([]model.LedgerDocument, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{"_id": bson.M{"$gt": afterUserID}}, opts)
}

func (r *MongoDBLedgerRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.LedgerDocument, error) {
	cursor, err := r.ledgers.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger documents: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []mongoLedgerDocument
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]model.LedgerDocument, 0, len(raw))
	for _, d := range raw {
		doc, err := d.toModel()
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// AppendRedemption stores a standalone redemption record.
func (r *MongoDBLedgerRepository) AppendRedemption(ctx context.Context, rec model.RedemptionRecord) error {
	if _, err := r.redemptions.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to append redemption: %w", err)
	}
	return nil
}

// ListRedemptions returns the newest redemptions of a user first.
func (r *MongoDBLedgerRepository) ListRedemptions(ctx context.Context, userID string, limit int) ([]model.RedemptionRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.redemptions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []model.RedemptionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	// Ensure not nil slice for JSON
	if records == nil {
		records = []model.RedemptionRecord{}
	}
	return records, nil
}

// GetStats returns statistics about the ledger collections.
func (r *MongoDBLedgerRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	count, err := r.ledgers.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["total_ledgers"] = count

	redemptions, err := r.redemptions.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["total_redemptions"] = redemptions

	result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: r.ledgers.Name()}})
	var collStats bson.M
	if err := result.Decode(&collStats); err == nil {
		if size, ok := collStats["size"].(int64); ok {
			stats["db_size_bytes"] = size
		} else if size, ok := collStats["size"].(int32); ok {
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBLedgerRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (d mongoLedgerDocument) toModel() (*model.LedgerDocument, error) {
	// Convert BSON back to JSON
	body, err := json.Marshal(scrubNonFinite(d.Doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger document %s to JSON: %w", d.UserID, err)
	}
	return &model.LedgerDocument{
		UserID:        d.UserID,
		Body:          body,
		Version:       d.Version,
		LifetimeTotal: d.LifetimeTotal,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

// scrubNonFinite replaces NaN and infinite doubles, which JSON cannot carry,
// with null so legacy documents still decode (and get coerced to 0 downstream).
func scrubNonFinite(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
	case bson.M:
		for k, e := range t {
			t[k] = scrubNonFinite(e)
		}
	case map[string]interface{}:
		for k, e := range t {
			t[k] = scrubNonFinite(e)
		}
	case bson.A:
		for i, e := range t {
			t[i] = scrubNonFinite(e)
		}
	case []interface{}:
		for i, e := range t {
			t[i] = scrubNonFinite(e)
		}
	}
	return v
}

// Ensure MongoDBLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*MongoDBLedgerRepository)(nil)
