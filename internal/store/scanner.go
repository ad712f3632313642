package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// BatchFunc consumes one batch of order references. Returning an error stops the scan.
type BatchFunc func(batch []*models.OrderRef) error

// ScanStats summarizes a completed scan
type ScanStats struct {
	DocumentsScanned int
	Batches          int
}

// OrderScanner walks an orders collection in ascending _id order
type OrderScanner struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewOrderScanner creates a scanner over the given collection
func NewOrderScanner(collection *mongo.Collection, log logger.Logger) *OrderScanner {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &OrderScanner{
		collection: collection,
		logger:     log.WithComponent("order_scanner"),
	}
}

var orderRefProjection = bson.D{
	{Key: "_id", Value: 1},
	{Key: "transaction_id", Value: 1},
	{Key: "order_id", Value: 1},
}

// Scan reads the whole collection in batches of at most batchSize documents,
// resuming each query after the last _id seen. Batches are handed to fn one at
// a time and in order. An empty batch ends the scan.
func (s *OrderScanner) Scan(ctx context.Context, batchSize int, fn BatchFunc) (*ScanStats, error) {
	if batchSize < 1 {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "orders_batch_size", batchSize, nil)
	}

	stats := &ScanStats{}
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "scan_orders",
		Logger:    s.logger,
	})

	var lastID *bson.RawValue
	for {
		batch, err := s.nextBatch(ctx, lastID, batchSize)
		if err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		stats.Batches++
		stats.DocumentsScanned += len(batch)
		tracker.Add(int64(len(batch)))

		if err := fn(batch); err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}

		last := batch[len(batch)-1].ID
		lastID = &last
	}

	tracker.Complete()
	return stats, nil
}

func (s *OrderScanner) nextBatch(ctx context.Context, after *bson.RawValue, limit int) ([]*models.OrderRef, error) {
	filter := bson.D{}
	if after != nil {
		filter = bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: *after}}}}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetBatchSize(int32(limit)).
		SetProjection(orderRefProjection)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, s.collection.Name(), err)
	}
	defer cursor.Close(ctx)

	batch := make([]*models.OrderRef, 0, limit)
	for cursor.Next(ctx) {
		ref, err := models.DecodeOrderRef(cursor.Current)
		if err != nil {
			return nil, errors.StoreError(errors.CodeQueryFailed, s.collection.Name(), err)
		}
		batch = append(batch, ref)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, s.collection.Name(), err)
	}

	return batch, nil
}
