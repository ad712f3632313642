package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/internal/reconciler"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with error classification and
// output file handling
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the output format settings")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders a reconciliation report, classifying failures
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil).
			WithSuggestion("Provide a valid reconciliation result")
	}
	if result.Summary == nil {
		return errors.ValidationError(errors.CodeMissingField, "summary", nil, nil).
			WithSuggestion("Ensure the reconciliation result includes a summary")
	}

	return srg.render("reconciliation_report", writer, func(w io.Writer) error {
		return srg.GenerateReport(result, w)
	})
}

// GenerateOrderListingSafely renders an order listing, classifying failures
func (srg *SafeReportGenerator) GenerateOrderListingSafely(orders []models.OrderView, writer io.Writer) error {
	return srg.render("order_listing", writer, func(w io.Writer) error {
		return srg.GenerateOrderListing(orders, w)
	})
}

// WriteReportFile renders a reconciliation report into the file at path.
// When the file cannot be created the report goes to a backup file in the
// temp directory and the backup path is logged.
func (srg *SafeReportGenerator) WriteReportFile(result *reconciler.ReconciliationResult, path string) error {
	return srg.writeFile(path, func(w io.Writer) error {
		return srg.GenerateReportSafely(result, w)
	})
}

// WriteOrderListingFile renders an order listing into the file at path
func (srg *SafeReportGenerator) WriteOrderListingFile(orders []models.OrderView, path string) error {
	return srg.writeFile(path, func(w io.Writer) error {
		return srg.GenerateOrderListingSafely(orders, w)
	})
}

func (srg *SafeReportGenerator) render(kind string, writer io.Writer, fn func(io.Writer) error) error {
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}

	log := srg.logger.WithFields(logger.Fields{
		"report": kind,
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	})
	log.Debug("Starting report generation")

	if err := fn(writer); err != nil {
		wrapped := srg.wrapGenerationError(err)
		log.WithError(wrapped).Error("Report generation failed")
		return wrapped
	}

	log.Debug("Report generation completed")
	return nil
}

func (srg *SafeReportGenerator) writeFile(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, dir, err)
	}

	file, err := os.Create(path)
	if err != nil {
		if !srg.isFileError(err) {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}

		backupPath := generateBackupPath(path)
		srg.logger.WithFields(logger.Fields{
			"original_file": path,
			"backup_file":   backupPath,
		}).WithError(err).Warn("Could not create output file, writing to backup location")

		backup, backupErr := os.Create(backupPath)
		if backupErr != nil {
			return errors.FileError(errors.CodeFilePermission, path, err).
				WithContext("backup_error", backupErr.Error())
		}
		file = backup
		path = backupPath
	}

	renderErr := fn(file)
	closeErr := file.Close()
	if renderErr != nil {
		return renderErr
	}
	if closeErr != nil {
		return errors.FileError(errors.CodeFilePermission, path, closeErr)
	}

	srg.logger.WithField("file", path).Info("Report written")
	return nil
}

// isFileError checks if the error is one a different location may avoid
func (srg *SafeReportGenerator) isFileError(err error) bool {
	return os.IsPermission(err) || os.IsExist(err)
}

// generateBackupPath places a backup copy of the output file in the temp directory
func generateBackupPath(originalPath string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	return filepath.Join(os.TempDir(), fmt.Sprintf("%s_backup%s", name, ext))
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
