package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"payment-reconciliation-service/cmd/reconciler/config"
	"payment-reconciliation-service/internal/reporter"
	"payment-reconciliation-service/internal/store"
	"payment-reconciliation-service/pkg/errors"
)

// Flags for the orders command
var (
	ordersQuery        store.OrderQuery
	ordersOutputFormat string
	ordersOutputFile   string
	ordersPretty       bool
)

// ordersCmd represents the orders command
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List paid orders",
	Long: `Orders lists the paid orders of the orders collection with their
listing fields (order id, name, city, price, approval status, print status).

Examples:
  # Approved orders, newest first
  reconciler orders --filter-status approved --sort-dir desc

  # Orders that used a discount code, except one campaign
  reconciler orders --filter-discount-code welcome10

  # Orders without any discount that still await print approval
  reconciler orders --filter-discount-code none --filter-print-approval not_found`,

	PreRunE: validateOrdersFlags,
	RunE:    runOrders,
}

func init() {
	rootCmd.AddCommand(ordersCmd)

	// Filter flags
	ordersCmd.Flags().StringVar(&ordersQuery.Status, "filter-status", "", "approved or uploaded")
	ordersCmd.Flags().StringVar(&ordersQuery.BookStyle, "filter-book-style", "", "only orders with this book style")
	ordersCmd.Flags().StringVar(&ordersQuery.PrintApproval, "filter-print-approval", "", "yes, no or not_found")
	ordersCmd.Flags().StringVar(&ordersQuery.DiscountCode, "filter-discount-code", "", "only orders with this discount code; none for undiscounted orders")
	ordersCmd.Flags().StringVar(&ordersQuery.ExcludeDiscountCode, "exclude-discount-code", "", "skip orders with this discount code")

	// Sorting flags
	ordersCmd.Flags().StringVar(&ordersQuery.SortBy, "sort-by", store.DefaultSortField, "field to sort by")
	ordersCmd.Flags().StringVar(&ordersQuery.SortDir, "sort-dir", store.SortAscending, "asc or desc")

	// Output flags
	ordersCmd.Flags().StringVarP(&ordersOutputFormat, "output-format", "f", string(reporter.FormatJSON), "output format: json, console")
	ordersCmd.Flags().StringVarP(&ordersOutputFile, "output-file", "o", "", "output file path (default: stdout)")
	ordersCmd.Flags().BoolVar(&ordersPretty, "pretty", false, "indent JSON output")

	// Bind filter flags to viper under their own section
	viper.BindPFlag("orders.filter-status", ordersCmd.Flags().Lookup("filter-status"))
	viper.BindPFlag("orders.filter-book-style", ordersCmd.Flags().Lookup("filter-book-style"))
	viper.BindPFlag("orders.filter-print-approval", ordersCmd.Flags().Lookup("filter-print-approval"))
	viper.BindPFlag("orders.filter-discount-code", ordersCmd.Flags().Lookup("filter-discount-code"))
	viper.BindPFlag("orders.exclude-discount-code", ordersCmd.Flags().Lookup("exclude-discount-code"))
	viper.BindPFlag("orders.sort-by", ordersCmd.Flags().Lookup("sort-by"))
	viper.BindPFlag("orders.sort-dir", ordersCmd.Flags().Lookup("sort-dir"))
}

func validateOrdersFlags(cmd *cobra.Command, args []string) error {
	ordersQuery = store.OrderQuery{
		Status:              strings.ToLower(strings.TrimSpace(viper.GetString("orders.filter-status"))),
		BookStyle:           strings.TrimSpace(viper.GetString("orders.filter-book-style")),
		PrintApproval:       strings.ToLower(strings.TrimSpace(viper.GetString("orders.filter-print-approval"))),
		DiscountCode:        strings.TrimSpace(viper.GetString("orders.filter-discount-code")),
		ExcludeDiscountCode: strings.TrimSpace(viper.GetString("orders.exclude-discount-code")),
		SortBy:              strings.TrimSpace(viper.GetString("orders.sort-by")),
		SortDir:             strings.ToLower(strings.TrimSpace(viper.GetString("orders.sort-dir"))),
	}

	if err := validateChoice("filter-status", ordersQuery.Status, store.StatusApproved, store.StatusUploaded); err != nil {
		return err
	}
	if err := validateChoice("filter-print-approval", ordersQuery.PrintApproval,
		store.PrintApprovalYes, store.PrintApprovalNo, store.PrintApprovalNotFound); err != nil {
		return err
	}
	if err := validateChoice("sort-dir", ordersQuery.SortDir, store.SortAscending, store.SortDescending); err != nil {
		return err
	}

	if _, err := config.CreateReportConfig(viper.GetViper(), ordersOutputFormat, ordersPretty); err != nil {
		return err
	}

	return validateOutputFile(ordersOutputFile)
}

// validateChoice accepts an empty value or one of the allowed values
func validateChoice(flag, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return errors.ValidationError(errors.CodeOutOfRange, flag, value,
		fmt.Errorf("must be one of: %s", strings.Join(allowed, ", ")))
}

func runOrders(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	v := viper.GetViper()
	storeConfig, err := config.CreateStoreConfig(v)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(v, ordersOutputFormat, ordersPretty)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(0)
	defer cancel()

	storeClient, err := store.Connect(ctx, storeConfig, log)
	if err != nil {
		return err
	}
	defer closeStore(storeClient, log)

	orders, err := store.NewOrderLister(storeClient.Orders(), log).ListOrders(ctx, ordersQuery)
	if err != nil {
		return err
	}

	reportGenerator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if err := writeOutput(ordersOutputFile,
		func(w io.Writer) error { return reportGenerator.GenerateOrderListingSafely(orders, w) },
		func(path string) error { return reportGenerator.WriteOrderListingFile(orders, path) },
	); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Listed %d orders.\n", len(orders))
	}

	return nil
}
