package store

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// Order listing filter values
const (
	StatusApproved = "approved"
	StatusUploaded = "uploaded"

	PrintApprovalYes      = "yes"
	PrintApprovalNo       = "no"
	PrintApprovalNotFound = "not_found"

	// DiscountCodeNone selects orders that had no discount applied
	DiscountCodeNone = "none"

	DefaultSortField = "created_at"
	SortAscending    = "asc"
	SortDescending   = "desc"
)

// OrderQuery selects and orders the paid orders to list. Unrecognized filter
// values are ignored rather than rejected.
type OrderQuery struct {
	Status              string
	BookStyle           string
	PrintApproval       string
	DiscountCode        string
	ExcludeDiscountCode string
	SortBy              string
	SortDir             string
}

var orderListProjection = bson.D{
	{Key: "_id", Value: 0},
	{Key: "order_id", Value: 1},
	{Key: "job_id", Value: 1},
	{Key: "cover_url", Value: 1},
	{Key: "book_url", Value: 1},
	{Key: "preview_url", Value: 1},
	{Key: "name", Value: 1},
	{Key: "shipping_address", Value: 1},
	{Key: "created_at", Value: 1},
	{Key: "processed_at", Value: 1},
	{Key: "approved_at", Value: 1},
	{Key: "approved", Value: 1},
	{Key: "book_id", Value: 1},
	{Key: "book_style", Value: 1},
	{Key: "print_status", Value: 1},
	{Key: "price", Value: 1},
	{Key: "total_price", Value: 1},
	{Key: "amount", Value: 1},
	{Key: "total_amount", Value: 1},
	{Key: "feedback_email", Value: 1},
	{Key: "print_approval", Value: 1},
	{Key: "discount_code", Value: 1},
	{Key: "currency", Value: 1},
	{Key: "locale", Value: 1},
}

// BuildOrderFilter translates the query into a MongoDB filter. Only paid orders are listed.
func BuildOrderFilter(q OrderQuery) bson.M {
	filter := bson.M{"paid": true}

	switch q.Status {
	case StatusApproved:
		filter["approved"] = true
	case StatusUploaded:
		filter["approved"] = false
	}

	if q.BookStyle != "" {
		filter["book_style"] = q.BookStyle
	}

	switch q.PrintApproval {
	case PrintApprovalYes:
		filter["print_approval"] = true
	case PrintApprovalNo:
		filter["print_approval"] = false
	case PrintApprovalNotFound:
		filter["print_approval"] = bson.M{"$exists": false}
	}

	if q.DiscountCode != "" {
		if strings.EqualFold(q.DiscountCode, DiscountCodeNone) {
			filter["discount_amount"] = 0
		} else {
			filter["discount_code"] = strings.ToUpper(q.DiscountCode)
		}
	}

	if q.ExcludeDiscountCode != "" {
		excluded := bson.M{"$ne": strings.ToUpper(q.ExcludeDiscountCode)}
		if code, ok := filter["discount_code"].(string); ok {
			filter["$and"] = bson.A{
				bson.M{"discount_code": code},
				bson.M{"discount_code": excluded},
			}
			delete(filter, "discount_code")
		} else {
			filter["discount_code"] = excluded
		}
	}

	return filter
}

// BuildOrderSort returns the sort document for the query, ascending unless desc is asked for
func BuildOrderSort(q OrderQuery) bson.D {
	field := q.SortBy
	if field == "" {
		field = DefaultSortField
	}
	dir := 1
	if q.SortDir != "" && q.SortDir != SortAscending {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}}
}

// OrderLister lists paid orders for review
type OrderLister struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewOrderLister creates a lister over the given collection
func NewOrderLister(collection *mongo.Collection, log logger.Logger) *OrderLister {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &OrderLister{
		collection: collection,
		logger:     log.WithComponent("order_lister"),
	}
}

// ListOrders returns the listing view of every paid order matching the query
func (l *OrderLister) ListOrders(ctx context.Context, q OrderQuery) ([]models.OrderView, error) {
	filter := BuildOrderFilter(q)
	opts := options.Find().
		SetSort(BuildOrderSort(q)).
		SetProjection(orderListProjection)

	cursor, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, l.collection.Name(), err)
	}
	defer cursor.Close(ctx)

	views := []models.OrderView{}
	for cursor.Next(ctx) {
		var order models.Order
		if err := cursor.Decode(&order); err != nil {
			return nil, errors.StoreError(errors.CodeQueryFailed, l.collection.Name(),
				fmt.Errorf("decode order: %w", err))
		}
		views = append(views, order.View())
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.StoreError(errors.CodeQueryFailed, l.collection.Name(), err)
	}

	l.logger.WithFields(logger.Fields{
		"orders": len(views),
		"filter": fmt.Sprintf("%v", filter),
	}).Debug("Listed orders")

	return views, nil
}
