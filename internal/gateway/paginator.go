package gateway

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// MaxPageSize is the largest page the payments endpoint returns
const MaxPageSize = 100

// PaymentQuery selects the payments to fetch
type PaymentQuery struct {
	// StatusFilter keeps only payments with this status, compared case-insensitively.
	// Empty keeps every status.
	StatusFilter string

	// From and To bound the payment creation time; nil leaves the side open
	From *time.Time
	To   *time.Time

	// MaxFetch caps the number of payments returned
	MaxFetch int
}

// PageLister fetches a single page of payments
type PageLister interface {
	ListPayments(ctx context.Context, params url.Values) (*models.PaymentPage, error)
}

// Paginator walks the payments collection page by page
type Paginator struct {
	lister PageLister
	logger logger.Logger
}

// NewPaginator creates a paginator over the given page lister
func NewPaginator(lister PageLister, log logger.Logger) *Paginator {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Paginator{
		lister: lister,
		logger: log.WithComponent("paginator"),
	}
}

// FetchPayments pages through the payments collection, keeping payments that pass
// the status filter in arrival order, until a short page is seen or MaxFetch
// payments have been kept. The result never holds more than MaxFetch payments.
// Any page failure aborts the whole fetch.
func (p *Paginator) FetchPayments(ctx context.Context, query PaymentQuery) ([]*models.Payment, error) {
	if query.MaxFetch < 1 {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "max_fetch", query.MaxFetch, nil)
	}

	var status models.PaymentStatus
	if query.StatusFilter != "" {
		status = models.NormalizeStatus(query.StatusFilter)
	}

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "fetch_payments",
		Total:     int64(query.MaxFetch),
		Logger:    p.logger,
	})

	items := make([]*models.Payment, 0, minInt(query.MaxFetch, 10*MaxPageSize))
	skip := 0
	pages := 0

	for {
		page, err := p.lister.ListPayments(ctx, pageParams(query, skip))
		if err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}
		pages++

		batch := page.Items
		if status != "" {
			batch = filterByStatus(batch, status)
		}
		items = append(items, batch...)
		tracker.Add(int64(len(batch)))

		p.logger.WithFields(logger.Fields{
			"skip":     skip,
			"received": len(page.Items),
			"kept":     len(batch),
			"total":    len(items),
		}).Debug("Fetched payments page")

		if len(batch) < MaxPageSize || len(items) >= query.MaxFetch {
			break
		}
		skip += MaxPageSize
	}

	if len(items) > query.MaxFetch {
		items = items[:query.MaxFetch]
	}

	tracker.Complete()
	p.logger.WithFields(logger.Fields{
		"payments":      len(items),
		"pages":         pages,
		"status_filter": query.StatusFilter,
	}).Info("Payments fetched")

	return items, nil
}

func pageParams(query PaymentQuery, skip int) url.Values {
	params := url.Values{}
	params.Set("count", strconv.Itoa(MaxPageSize))
	params.Set("skip", strconv.Itoa(skip))
	if query.From != nil {
		params.Set("from", strconv.FormatInt(query.From.Unix(), 10))
	}
	if query.To != nil {
		params.Set("to", strconv.FormatInt(query.To.Unix(), 10))
	}
	params.Add("expand[]", "card")
	return params
}

func filterByStatus(payments []*models.Payment, status models.PaymentStatus) []*models.Payment {
	kept := make([]*models.Payment, 0, len(payments))
	for _, payment := range payments {
		if payment != nil && models.NormalizeStatus(string(payment.Status)) == status {
			kept = append(kept, payment)
		}
	}
	return kept
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
