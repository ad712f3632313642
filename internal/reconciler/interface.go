package reconciler

import (
	"context"

	"payment-reconciliation-service/internal/gateway"
	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/store"
)

// PaymentSource fetches payment records from the payment gateway.
// *gateway.Paginator is the production implementation.
//
//go:generate mockgen -destination=mocks/mock_sources.go -source=interface.go PaymentSource,OrderSource
type PaymentSource interface {
	FetchPayments(ctx context.Context, query gateway.PaymentQuery) ([]*models.Payment, error)
}

// OrderSource streams order references in batches.
// *store.OrderScanner is the production implementation.
type OrderSource interface {
	Scan(ctx context.Context, batchSize int, fn store.BatchFunc) (*store.ScanStats, error)
}
