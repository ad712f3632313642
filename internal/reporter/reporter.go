// Package reporter builds and renders reconciliation reports.
//
// BuildReport turns a ReconciliationResult into the stable response shape:
//
//	{"summary": {...}, "na_payment_ids": [...], "na_by_status": {"captured": [...]}}
//
// ReportGenerator writes that report as JSON (compact or indented) or as a
// human-readable console summary:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON, Pretty: true})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Pretty indents JSON output
	Pretty bool `json:"pretty" mapstructure:"pretty"`

	// Console options
	IncludeProcessingStats bool `json:"include_processing_stats" mapstructure:"include_processing_stats"`
	MaxListedIDs           int  `json:"max_listed_ids" mapstructure:"max_listed_ids"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatJSON,
		Pretty:                 false,
		IncludeProcessingStats: true,
		MaxListedIDs:           50,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.MaxListedIDs < 0 {
		return fmt.Errorf("max listed ids cannot be negative, got %d", c.MaxListedIDs)
	}

	return nil
}

// Report is the response shape of a reconciliation run
type Report struct {
	Summary      *reconciler.ResultSummary `json:"summary"`
	NAPaymentIDs []string                  `json:"na_payment_ids"`
	NAByStatus   map[string][]string       `json:"na_by_status"`
}

// BuildReport assembles the report for a result. The id list and the status
// map are never nil so they encode as [] and {}.
func BuildReport(result *reconciler.ReconciliationResult) *Report {
	report := &Report{
		Summary:      result.Summary,
		NAPaymentIDs: []string{},
		NAByStatus:   map[string][]string{},
	}

	if result.NotApplied == nil {
		return report
	}

	report.NAPaymentIDs = result.NotApplied.IDs()
	for status, ids := range result.NotApplied.ByStatus {
		report.NAByStatus[status] = append([]string(nil), ids...)
	}

	return report
}

// CurrencyTotal is the NA amount outstanding in one currency
type CurrencyTotal struct {
	Currency string
	Count    int
	Amount   decimal.Decimal
}

// NATotals sums NA payment amounts per currency, in major units, sorted by currency
func NATotals(result *reconciler.ReconciliationResult) []CurrencyTotal {
	if result.NotApplied == nil {
		return nil
	}

	byCurrency := make(map[string]*CurrencyTotal)
	for _, entry := range result.NotApplied.Entries {
		if entry.Payment == nil {
			continue
		}
		currency := strings.ToUpper(entry.Payment.Currency)
		total, ok := byCurrency[currency]
		if !ok {
			total = &CurrencyTotal{Currency: currency, Amount: decimal.Zero}
			byCurrency[currency] = total
		}
		total.Count++
		total.Amount = total.Amount.Add(entry.Payment.MajorAmount())
	}

	totals := make([]CurrencyTotal, 0, len(byCurrency))
	for _, total := range byCurrency {
		totals = append(totals, *total)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Currency < totals[j].Currency
	})

	return totals
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport generates a report from reconciliation results and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}
	if result.Summary == nil {
		return fmt.Errorf("reconciliation result has no summary")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.writeJSON(BuildReport(result), writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateOrderListing writes an order listing in the configured format
func (rg *ReportGenerator) GenerateOrderListing(orders []models.OrderView, writer io.Writer) error {
	if orders == nil {
		orders = []models.OrderView{}
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleOrders(orders, writer)
	case FormatJSON:
		return rg.writeJSON(orders, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) writeJSON(v interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if rg.config.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	summary := result.Summary

	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	if result.RunID != "" {
		fmt.Fprintf(writer, "Run ID:    %s\n", result.RunID)
	}
	if !result.ProcessedAt.IsZero() {
		fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== PARAMETERS ===\n")
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Payment status filter:\t%s\n", summary.PaymentStatusFilter)
	fmt.Fprintf(tw, "Date window:\t%s .. %s\n", summary.DateWindow.FromDate, summary.DateWindow.ToDate)
	fmt.Fprintf(tw, "Case-insensitive ids:\t%t\n", summary.CaseInsensitiveIDs)
	fmt.Fprintf(tw, "Max fetch:\t%d\n", summary.MaxFetch)
	fmt.Fprintf(tw, "Orders batch size:\t%d\n", summary.OrdersBatchSize)
	fmt.Fprintf(tw, "NA status filter:\t%s\n", summary.NAStatusFilter)
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	tw = tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Payments fetched:\t%d\n", summary.TotalPaymentsRows)
	if summary.TotalPaymentsRows == summary.MaxFetch {
		fmt.Fprintf(tw, "\t(max fetch reached, older payments may be missing)\n")
	}
	fmt.Fprintf(tw, "Orders scanned:\t%d\n", summary.TotalOrdersDocsScanned)
	fmt.Fprintf(tw, "Orders with transaction id:\t%d\n", summary.OrdersWithTransactionID)
	fmt.Fprintf(tw, "Matched payment ids:\t%d (%.1f%%)\n",
		summary.MatchedDistinctPaymentIDs,
		calculatePercentage(summary.MatchedDistinctPaymentIDs, summary.TotalPaymentsRows))
	fmt.Fprintf(tw, "NA payments:\t%d\n", summary.NACount)
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(writer, "\n")

	if totals := NATotals(result); len(totals) > 0 {
		fmt.Fprintf(writer, "=== NA AMOUNTS ===\n")
		tw = tabwriter.NewWriter(writer, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, total := range totals {
			fmt.Fprintf(tw, "%s\t%s\t(%d payments)\t\n", total.Currency, total.Amount.StringFixed(2), total.Count)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}

	report := BuildReport(result)
	if len(report.NAPaymentIDs) > 0 {
		fmt.Fprintf(writer, "=== NA PAYMENTS ===\n")
		statuses := make([]string, 0, len(report.NAByStatus))
		for status := range report.NAByStatus {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)

		for _, status := range statuses {
			ids := report.NAByStatus[status]
			fmt.Fprintf(writer, "%s (%d):\n", strings.ToUpper(status), len(ids))
			rg.printIDList(ids, writer)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result.ProcessingStats, writer)
	}

	return nil
}

func (rg *ReportGenerator) generateConsoleOrders(orders []models.OrderView, writer io.Writer) error {
	fmt.Fprintf(writer, "Orders: %d\n\n", len(orders))
	if len(orders) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ORDER ID\tNAME\tCITY\tPRICE\tSTATUS\tBOOK STYLE\tPRINT STATUS\tDISCOUNT\n")
	for _, order := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\t%s\t%s\n",
			order.OrderID,
			order.Name,
			order.City,
			order.Price,
			order.Status,
			order.BookStyle,
			order.PrintStatus,
			order.DiscountCode)
	}
	return tw.Flush()
}

func (rg *ReportGenerator) printIDList(ids []string, writer io.Writer) {
	for i, id := range ids {
		if rg.config.MaxListedIDs > 0 && i >= rg.config.MaxListedIDs {
			fmt.Fprintf(writer, "  ... and %d more\n", len(ids)-rg.config.MaxListedIDs)
			break
		}
		fmt.Fprintf(writer, "  %d. %s\n", i+1, id)
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, writer io.Writer) {
	fmt.Fprintf(writer, "Indexed Keys:      %d\n", stats.IndexedKeys)
	fmt.Fprintf(writer, "Duplicate Keys:    %d\n", stats.DuplicateKeys)
	fmt.Fprintf(writer, "Skipped Payments:  %d\n", stats.SkippedPayments)
	fmt.Fprintf(writer, "Order Batches:     %d\n", stats.OrderBatches)
	fmt.Fprintf(writer, "Fetch Time:        %v\n", stats.FetchDuration)
	fmt.Fprintf(writer, "Scan Time:         %v\n", stats.ScanDuration)
	fmt.Fprintf(writer, "Total Processing:  %v\n", stats.TotalDuration)
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
