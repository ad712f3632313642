package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-reconciliation-service/cmd/reconciler/config"
	"payment-reconciliation-service/internal/reconciler"
	"payment-reconciliation-service/internal/reporter"
	"payment-reconciliation-service/internal/store"
	"payment-reconciliation-service/pkg/errors"
)

// Flags for the reconcile command
var (
	statusFilter       string
	fromDate           string
	toDate             string
	maxFetch           int
	caseInsensitiveIDs bool
	ordersBatchSize    int
	naStatus           string
	outputFormat       string
	outputFile         string
	prettyOutput       bool
	showProgress       bool
	runTimeout         time.Duration
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report payments that no order refers to",
	Long: `Reconcile fetches payments from Razorpay, scans every order in the orders
collection and lists the payments whose id appears in no order's
transaction_id (NA, not applied).

The run is read-only and all-or-nothing: any gateway or store failure aborts
it without a partial report.

Examples:
  # All captured payments of January that no order refers to
  reconciler reconcile --status captured --from-date 2024-01-01 --to-date 2024-01-31

  # Ignore case when comparing payment ids with order references
  reconciler reconcile --case-insensitive-ids

  # Report failed payments without orders, human readable
  reconciler reconcile --na-status failed --output-format console

  # Indented JSON into a file
  reconciler reconcile --pretty --output-file na.json`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Payment selection flags
	reconcileCmd.Flags().StringVar(&statusFilter, "status", "", "only fetch payments with this status (default: all)")
	reconcileCmd.Flags().StringVar(&fromDate, "from-date", "", "payments created at or after this date")
	reconcileCmd.Flags().StringVar(&toDate, "to-date", "", "payments created at or before this date")
	reconcileCmd.Flags().IntVar(&maxFetch, "max-fetch", 0,
		fmt.Sprintf("maximum payments to fetch, %d-%d (default: defaults.max_fetch, %d)",
			reconciler.MinMaxFetch, reconciler.MaxMaxFetch, reconciler.DefaultMaxFetch))

	// Matching flags
	reconcileCmd.Flags().BoolVar(&caseInsensitiveIDs, "case-insensitive-ids", false, "compare payment ids case-insensitively")
	reconcileCmd.Flags().IntVar(&ordersBatchSize, "orders-batch-size", 0,
		fmt.Sprintf("orders read per query, %d-%d (default: defaults.orders_batch_size, %d)",
			reconciler.MinOrdersBatchSize, reconciler.MaxOrdersBatchSize, reconciler.DefaultOrdersBatchSize))
	reconcileCmd.Flags().StringVar(&naStatus, "na-status", "",
		fmt.Sprintf("payment status reported as NA (default: defaults.na_status, %s)", reconciler.DefaultNAStatus))

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", string(reporter.FormatJSON), "output format: json, console")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&prettyOutput, "pretty", false, "indent JSON output")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress on stderr")
	reconcileCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "abort the run after this long (default: no limit)")

	// Bind flags to viper
	viper.BindPFlag("status", reconcileCmd.Flags().Lookup("status"))
	viper.BindPFlag("from-date", reconcileCmd.Flags().Lookup("from-date"))
	viper.BindPFlag("to-date", reconcileCmd.Flags().Lookup("to-date"))
	viper.BindPFlag("max-fetch", reconcileCmd.Flags().Lookup("max-fetch"))
	viper.BindPFlag("case-insensitive-ids", reconcileCmd.Flags().Lookup("case-insensitive-ids"))
	viper.BindPFlag("orders-batch-size", reconcileCmd.Flags().Lookup("orders-batch-size"))
	viper.BindPFlag("na-status", reconcileCmd.Flags().Lookup("na-status"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("pretty", reconcileCmd.Flags().Lookup("pretty"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
	viper.BindPFlag("timeout", reconcileCmd.Flags().Lookup("timeout"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	statusFilter = viper.GetString("status")
	fromDate = viper.GetString("from-date")
	toDate = viper.GetString("to-date")
	maxFetch = viper.GetInt("max-fetch")
	caseInsensitiveIDs = viper.GetBool("case-insensitive-ids")
	ordersBatchSize = viper.GetInt("orders-batch-size")
	naStatus = viper.GetString("na-status")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	prettyOutput = viper.GetBool("pretty")
	showProgress = viper.GetBool("progress")
	runTimeout = viper.GetDuration("timeout")

	if _, err := config.CreateReportConfig(viper.GetViper(), outputFormat, prettyOutput); err != nil {
		return err
	}

	if runTimeout < 0 {
		return errors.ValidationError(errors.CodeOutOfRange, "timeout", runTimeout, nil)
	}

	return validateOutputFile(outputFile)
}

// buildReconciliationRequest maps the command flags onto an engine request
func buildReconciliationRequest() *reconciler.ReconciliationRequest {
	return &reconciler.ReconciliationRequest{
		Status:             statusFilter,
		FromDate:           fromDate,
		ToDate:             toDate,
		MaxFetch:           maxFetch,
		CaseInsensitiveIDs: caseInsensitiveIDs,
		OrdersBatchSize:    ordersBatchSize,
		NAStatus:           naStatus,
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	v := viper.GetViper()

	// Everything that can be checked locally is checked before any connection is made
	reconcilerConfig, err := config.CreateReconcilerConfig(v, showProgress)
	if err != nil {
		return err
	}
	request := buildReconciliationRequest()
	if err := reconciler.ValidateRequest(reconcilerConfig, request); err != nil {
		return err
	}
	gatewayConfig, err := config.CreateGatewayConfig(v)
	if err != nil {
		return err
	}
	storeConfig, err := config.CreateStoreConfig(v)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(v, outputFormat, prettyOutput)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Payment status: %s\n", valueOr(statusFilter, reconciler.AllStatusesLabel))
		fmt.Fprintf(os.Stderr, "Date window: %s .. %s\n", valueOr(fromDate, reconciler.AllTimeLabel), valueOr(toDate, reconciler.AllTimeLabel))
		fmt.Fprintf(os.Stderr, "Orders collection: %s.%s\n", storeConfig.Database, storeConfig.Collection)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", reportConfig.Format)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	ctx, cancel := commandContext(runTimeout)
	defer cancel()

	payments, err := newPaymentSource(gatewayConfig, log)
	if err != nil {
		return err
	}

	storeClient, err := store.Connect(ctx, storeConfig, log)
	if err != nil {
		return err
	}
	defer closeStore(storeClient, log)

	service, err := reconciler.NewReconciliationService(
		payments,
		store.NewOrderScanner(storeClient.Orders(), log),
		reconcilerConfig,
		log,
	)
	if err != nil {
		return err
	}

	if showProgress {
		service.AddProgressCallback(progressPrinter(os.Stderr))
	}

	result, err := service.ProcessReconciliation(ctx, request)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err != nil {
		return err
	}

	reportGenerator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	err = writeOutput(outputFile,
		func(w io.Writer) error { return reportGenerator.GenerateReportSafely(result, w) },
		func(path string) error { return reportGenerator.WriteReportFile(result, path) },
	)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Fetched %d payments and scanned %d orders.\n",
			result.Summary.TotalPaymentsRows, result.Summary.TotalOrdersDocsScanned)
		fmt.Fprintf(os.Stderr, "Matched %d payment ids, %d NA.\n",
			result.Summary.MatchedDistinctPaymentIDs, result.Summary.NACount)
		if result.Summary.TotalPaymentsRows == result.Summary.MaxFetch {
			fmt.Fprintf(os.Stderr, "Max fetch of %d reached; older payments were not examined.\n", result.Summary.MaxFetch)
		}
		if result.ProcessingStats != nil {
			fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.ProcessingStats.TotalDuration)
		}
	}

	return nil
}

// progressPrinter renders progress updates on a single terminal line
func progressPrinter(w io.Writer) reconciler.ProgressCallback {
	return func(progress *reconciler.ReconciliationProgress) {
		fmt.Fprintf(w, "\r%-15s payments=%d orders=%d matched=%d (%v)",
			progress.Phase,
			progress.PaymentsFetched,
			progress.OrdersScanned,
			progress.MatchedKeys,
			progress.Elapsed.Round(time.Millisecond))
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
