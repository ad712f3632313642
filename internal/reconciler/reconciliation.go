// Package reconciler runs payment-to-order reconciliation.
//
// A run fetches payments from a PaymentSource, indexes them by normalized id,
// streams every order reference from an OrderSource through the index and
// reports the payments no order refers to (NA, not applied):
//
//	service, err := reconciler.NewReconciliationService(paginator, scanner, reconciler.DefaultConfig(), log)
//	result, err := service.ProcessReconciliation(ctx, &reconciler.ReconciliationRequest{
//		Status:   "captured",
//		FromDate: "2024-01-01",
//	})
//
// A run is read-only and all-or-nothing: any failure returns an error and no result.
package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"payment-reconciliation-service/internal/gateway"
	"payment-reconciliation-service/internal/matcher"
	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// ReconciliationService orchestrates the complete reconciliation process
type ReconciliationService struct {
	payments          PaymentSource
	orders            OrderSource
	config            *Config
	logger            logger.Logger
	progressCallbacks []ProgressCallback
	newRunID          func() string
}

// ReconciliationRequest represents a request for reconciliation.
// Zero values select the configured defaults.
type ReconciliationRequest struct {
	// Status keeps only payments with this gateway status; empty keeps all
	Status string `json:"status,omitempty"`

	// FromDate and ToDate bound payment creation time; empty leaves the side open
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`

	MaxFetch           int    `json:"max_fetch,omitempty"`
	CaseInsensitiveIDs bool   `json:"case_insensitive_ids"`
	OrdersBatchSize    int    `json:"orders_batch_size,omitempty"`
	NAStatus           string `json:"na_status,omitempty"`
}

// DateWindow echoes the requested date bounds
type DateWindow struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// ResultSummary holds the run counters and the effective parameters
type ResultSummary struct {
	TotalOrdersDocsScanned    int        `json:"total_orders_docs_scanned"`
	OrdersWithTransactionID   int        `json:"orders_with_transaction_id"`
	TotalPaymentsRows         int        `json:"total_payments_rows"`
	PaymentStatusFilter       string     `json:"payment_status_filter"`
	CaseInsensitiveIDs        bool       `json:"case_insensitive_ids"`
	MatchedDistinctPaymentIDs int        `json:"matched_distinct_payment_ids"`
	NACount                   int        `json:"na_count"`
	MaxFetch                  int        `json:"max_fetch"`
	DateWindow                DateWindow `json:"date_window"`
	OrdersBatchSize           int        `json:"orders_batch_size"`
	NAStatusFilter            string     `json:"na_status_filter"`
}

// ProcessingStats contains diagnostics that are not part of the summary
type ProcessingStats struct {
	IndexedKeys     int           `json:"indexed_keys"`
	DuplicateKeys   int           `json:"duplicate_keys"`
	SkippedPayments int           `json:"skipped_payments"`
	OrderBatches    int           `json:"order_batches"`
	FetchDuration   time.Duration `json:"fetch_duration"`
	ScanDuration    time.Duration `json:"scan_duration"`
	TotalDuration   time.Duration `json:"total_duration"`
}

// ReconciliationResult contains the complete results of reconciliation
type ReconciliationResult struct {
	RunID           string            `json:"run_id"`
	Summary         *ResultSummary    `json:"summary"`
	NotApplied      *matcher.NAReport `json:"-"`
	ProcessingStats *ProcessingStats  `json:"processing_stats,omitempty"`
	ProcessedAt     time.Time         `json:"processed_at"`
}

// Phase names a step of a reconciliation run
type Phase string

const (
	PhaseFetchPayments Phase = "fetch_payments"
	PhaseIndexPayments Phase = "index_payments"
	PhaseScanOrders    Phase = "scan_orders"
	PhaseComputeNA     Phase = "compute_na"
	PhaseComplete      Phase = "complete"
)

// ReconciliationProgress tracks the progress of a reconciliation run
type ReconciliationProgress struct {
	RunID           string
	Phase           Phase
	PaymentsFetched int
	OrdersScanned   int
	MatchedKeys     int
	Elapsed         time.Duration
}

// ProgressCallback is called to report reconciliation progress
type ProgressCallback func(*ReconciliationProgress)

// resolvedRequest is a request with defaults applied and dates parsed
type resolvedRequest struct {
	status          string
	from            *time.Time
	to              *time.Time
	maxFetch        int
	batchSize       int
	matchingConfig  *matcher.MatchingConfig
	fromDateLabel   string
	toDateLabel     string
	statusLabel     string
	naStatusLabel   string
	caseInsensitive bool
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(payments PaymentSource, orders OrderSource, config *Config, log logger.Logger) (*ReconciliationService, error) {
	if payments == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "payment_source", nil, nil)
	}
	if orders == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "order_source", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", nil, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &ReconciliationService{
		payments: payments,
		orders:   orders,
		config:   config,
		logger:   log.WithComponent("reconciler"),
		newRunID: uuid.NewString,
	}, nil
}

// AddProgressCallback adds a progress callback function
func (rs *ReconciliationService) AddProgressCallback(callback ProgressCallback) {
	rs.progressCallbacks = append(rs.progressCallbacks, callback)
}

// ProcessReconciliation validates the request, fetches payments, scans every order
// and computes the NA report. Validation happens before any outside call.
func (rs *ReconciliationService) ProcessReconciliation(ctx context.Context, request *ReconciliationRequest) (*ReconciliationResult, error) {
	resolved, err := resolveRequest(rs.config, request)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	runID := rs.newRunID()
	op := logger.NewOperationLogger("reconcile", rs.logger).WithField("run_id", runID)
	stats := &ProcessingStats{}

	progress := &ReconciliationProgress{RunID: runID}
	report := func(phase Phase) {
		progress.Phase = phase
		progress.Elapsed = time.Since(startTime)
		rs.notify(progress)
	}

	// Phase 1: fetch payments
	report(PhaseFetchPayments)
	fetchStart := time.Now()
	payments, err := rs.payments.FetchPayments(ctx, gateway.PaymentQuery{
		StatusFilter: resolved.status,
		From:         resolved.from,
		To:           resolved.to,
		MaxFetch:     resolved.maxFetch,
	})
	if err != nil {
		op.Error(err, "Payment fetch failed")
		return nil, errors.WrapIfNeeded(err, errors.CategoryReconciliation, errors.CodeProcessingError, "failed to fetch payments")
	}
	stats.FetchDuration = time.Since(fetchStart)
	progress.PaymentsFetched = len(payments)
	op.Step(string(PhaseFetchPayments), logger.Fields{"payments": len(payments)})

	// Phase 2: index payments
	report(PhaseIndexPayments)
	engine := matcher.NewMatchingEngine(resolved.matchingConfig)
	engine.LoadPayments(payments)

	indexStats := engine.Index.GetIndexStats()
	stats.IndexedKeys = indexStats.IndexedKeys
	stats.DuplicateKeys = indexStats.DuplicateKeys
	stats.SkippedPayments = indexStats.SkippedEmptyID
	if indexStats.DuplicateKeys > 0 {
		op.Warning("Payments share a normalized id; the later payment replaced the earlier one", logger.Fields{
			"duplicate_keys": indexStats.DuplicateKeys,
		})
	}

	// Phase 3: scan orders
	report(PhaseScanOrders)
	scanStart := time.Now()
	scanStats, err := rs.orders.Scan(ctx, resolved.batchSize, func(batch []*models.OrderRef) error {
		engine.ObserveOrders(batch)
		matchStats := engine.GetStats()
		progress.OrdersScanned = matchStats.OrdersObserved
		progress.MatchedKeys = matchStats.MatchedDistinct
		if rs.config.ProgressReporting {
			report(PhaseScanOrders)
		}
		return ctx.Err()
	})
	if err != nil {
		op.Error(err, "Order scan failed")
		return nil, errors.WrapIfNeeded(err, errors.CategoryReconciliation, errors.CodeProcessingError, "failed to scan orders")
	}
	stats.ScanDuration = time.Since(scanStart)
	if scanStats != nil {
		stats.OrderBatches = scanStats.Batches
	}

	// Phase 4: compute NA
	report(PhaseComputeNA)
	na := engine.NotApplied()
	matchStats := engine.GetStats()

	summary := &ResultSummary{
		TotalOrdersDocsScanned:    matchStats.OrdersObserved,
		OrdersWithTransactionID:   matchStats.OrdersWithReference,
		TotalPaymentsRows:         len(payments),
		PaymentStatusFilter:       resolved.statusLabel,
		CaseInsensitiveIDs:        resolved.caseInsensitive,
		MatchedDistinctPaymentIDs: matchStats.MatchedDistinct,
		NACount:                   len(na.Entries),
		MaxFetch:                  resolved.maxFetch,
		DateWindow: DateWindow{
			FromDate: resolved.fromDateLabel,
			ToDate:   resolved.toDateLabel,
		},
		OrdersBatchSize: resolved.batchSize,
		NAStatusFilter:  resolved.naStatusLabel,
	}

	stats.TotalDuration = time.Since(startTime)
	report(PhaseComplete)

	op.Success("Reconciliation completed", logger.Fields{
		"payments":        summary.TotalPaymentsRows,
		"orders_scanned":  summary.TotalOrdersDocsScanned,
		"matched":         summary.MatchedDistinctPaymentIDs,
		"na_count":        summary.NACount,
		"max_fetch_limit": len(payments) == resolved.maxFetch,
	})

	return &ReconciliationResult{
		RunID:           runID,
		Summary:         summary,
		NotApplied:      na,
		ProcessingStats: stats,
		ProcessedAt:     time.Now(),
	}, nil
}

// ValidateRequest reports the first invalid field of a request once defaults
// are applied. It makes no outside calls.
func ValidateRequest(config *Config, request *ReconciliationRequest) error {
	if config == nil {
		config = DefaultConfig()
	}
	_, err := resolveRequest(config, request)
	return err
}

// resolveRequest applies defaults and validates the request
func resolveRequest(config *Config, request *ReconciliationRequest) (*resolvedRequest, error) {
	if request == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, nil)
	}

	r := &resolvedRequest{
		status:          strings.TrimSpace(request.Status),
		maxFetch:        request.MaxFetch,
		batchSize:       request.OrdersBatchSize,
		caseInsensitive: request.CaseInsensitiveIDs,
		fromDateLabel:   AllTimeLabel,
		toDateLabel:     AllTimeLabel,
	}

	if r.maxFetch == 0 {
		r.maxFetch = config.DefaultMaxFetch
	}
	if r.maxFetch < MinMaxFetch || r.maxFetch > MaxMaxFetch {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "max_fetch", r.maxFetch,
			fmt.Errorf("must be between %d and %d", MinMaxFetch, MaxMaxFetch))
	}

	if r.batchSize == 0 {
		r.batchSize = config.DefaultOrdersBatchSize
	}
	if r.batchSize < MinOrdersBatchSize || r.batchSize > MaxOrdersBatchSize {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "orders_batch_size", r.batchSize,
			fmt.Errorf("must be between %d and %d", MinOrdersBatchSize, MaxOrdersBatchSize))
	}

	var err error
	if r.from, err = parseDate(config.Location, "from_date", request.FromDate); err != nil {
		return nil, err
	}
	if r.to, err = parseDate(config.Location, "to_date", request.ToDate); err != nil {
		return nil, err
	}
	if r.from != nil && r.to != nil && r.from.After(*r.to) {
		return nil, errors.ValidationError(errors.CodeInvalidDate, "from_date", request.FromDate,
			fmt.Errorf("from date %s is after to date %s", request.FromDate, request.ToDate))
	}
	if r.from != nil {
		r.fromDateLabel = request.FromDate
	}
	if r.to != nil {
		r.toDateLabel = request.ToDate
	}

	naStatus := request.NAStatus
	if naStatus == "" {
		naStatus = config.DefaultNAStatus
	}
	r.matchingConfig = &matcher.MatchingConfig{
		CaseInsensitiveIDs: request.CaseInsensitiveIDs,
		NAStatus:           naStatus,
	}
	if err := r.matchingConfig.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "na_status", request.NAStatus, err)
	}
	r.naStatusLabel = r.matchingConfig.TargetStatus().String()

	r.statusLabel = AllStatusesLabel
	if r.status != "" {
		r.statusLabel = r.status
	}

	return r, nil
}

func parseDate(loc *time.Location, field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := models.ParseTimeWithFormats(value, loc)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidDate, field, value, err)
	}
	return &t, nil
}

func (rs *ReconciliationService) notify(progress *ReconciliationProgress) {
	for _, callback := range rs.progressCallbacks {
		snapshot := *progress
		callback(&snapshot)
	}
}
