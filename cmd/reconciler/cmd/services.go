package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"payment-reconciliation-service/cmd/reconciler/config"
	"payment-reconciliation-service/internal/gateway"
	"payment-reconciliation-service/internal/store"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// storeCloseTimeout bounds the disconnect after a command finishes
const storeCloseTimeout = 5 * time.Second

// newLogger builds the process logger from settings and installs it globally
func newLogger() (logger.Logger, error) {
	logConfig, err := config.CreateLoggerConfig(viper.GetViper(), viper.GetBool("verbose"))
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err)
	}

	logger.SetGlobalLogger(log)
	return log, nil
}

// commandContext returns a context cancelled on interrupt and, when timeout
// is positive, once timeout elapses
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newPaymentSource builds the gateway client and its paginator
func newPaymentSource(gatewayConfig *gateway.Config, log logger.Logger) (*gateway.Paginator, error) {
	client, err := gateway.NewClient(gatewayConfig, log)
	if err != nil {
		return nil, err
	}
	return gateway.NewPaginator(client, log), nil
}

// closeStore disconnects from the document store, logging any failure
func closeStore(client *store.Client, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
	defer cancel()

	if err := client.Close(ctx); err != nil {
		log.WithError(err).Warn("Failed to disconnect from document store")
	}
}

// validateOutputFile checks that the directory of an output file exists
func validateOutputFile(path string) error {
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, dir, err)
	}
	return nil
}

// writeOutput sends rendered output to stdout, or to a file when one is named
func writeOutput(path string, toWriter func(io.Writer) error, toFile func(string) error) error {
	if path == "" {
		return toWriter(os.Stdout)
	}
	return toFile(path)
}
