// Package config turns viper settings into the typed configurations of the
// gateway, store, reconciler, reporter and logger packages.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"payment-reconciliation-service/internal/gateway"
	"payment-reconciliation-service/internal/reconciler"
	"payment-reconciliation-service/internal/reporter"
	"payment-reconciliation-service/internal/store"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// EnvPrefix is prepended to every environment variable viper reads
const EnvPrefix = "RECONCILER"

// Setting keys. Nested keys map to RECONCILER_<SECTION>_<NAME> environment variables.
const (
	KeyRazorpayKeyID        = "razorpay.key_id"
	KeyRazorpayKeySecret    = "razorpay.key_secret"
	KeyRazorpayBaseURL      = "razorpay.base_url"
	KeyRazorpayTimeout      = "razorpay.timeout"
	KeyRazorpayRPS          = "razorpay.requests_per_second"
	KeyRazorpayBurst        = "razorpay.burst"
	KeyMongoURI             = "mongo.uri"
	KeyMongoDatabase        = "mongo.database"
	KeyMongoCollection      = "mongo.collection"
	KeyMongoConnectTimeout  = "mongo.connect_timeout"
	KeyMongoSelectTimeout   = "mongo.server_selection_timeout"
	KeyMongoMaxPoolSize     = "mongo.max_pool_size"
	KeyTimezone             = "timezone"
	KeyDefaultMaxFetch      = "defaults.max_fetch"
	KeyDefaultBatchSize     = "defaults.orders_batch_size"
	KeyDefaultNAStatus      = "defaults.na_status"
	KeyLogLevel             = "log.level"
	KeyLogFormat            = "log.format"
	KeyLogFile              = "log.file"
	KeyReportMaxListedIDs   = "report.max_listed_ids"
	KeyReportProcessingInfo = "report.include_processing_stats"
)

// envAliases are the conventional variable names accepted next to the prefixed ones
var envAliases = map[string]string{
	KeyRazorpayKeyID:     "RAZORPAY_KEY_ID",
	KeyRazorpayKeySecret: "RAZORPAY_KEY_SECRET",
	KeyMongoURI:          "MONGO_URI",
}

// Init configures environment lookup and defaults on v
func Init(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		_ = v.BindEnv(key, prefixed, alias)
	}

	SetDefaults(v)
}

// SetDefaults registers the default value of every setting
func SetDefaults(v *viper.Viper) {
	gw := gateway.DefaultConfig()
	v.SetDefault(KeyRazorpayBaseURL, gw.BaseURL)
	v.SetDefault(KeyRazorpayTimeout, gw.Timeout)
	v.SetDefault(KeyRazorpayRPS, gw.RequestsPerSecond)
	v.SetDefault(KeyRazorpayBurst, gw.Burst)

	st := store.DefaultConfig()
	v.SetDefault(KeyMongoDatabase, st.Database)
	v.SetDefault(KeyMongoCollection, st.Collection)
	v.SetDefault(KeyMongoConnectTimeout, st.ConnectTimeout)
	v.SetDefault(KeyMongoSelectTimeout, st.ServerSelectionTimeout)
	v.SetDefault(KeyMongoMaxPoolSize, st.MaxPoolSize)

	v.SetDefault(KeyTimezone, "Local")
	v.SetDefault(KeyDefaultMaxFetch, reconciler.DefaultMaxFetch)
	v.SetDefault(KeyDefaultBatchSize, reconciler.DefaultOrdersBatchSize)
	v.SetDefault(KeyDefaultNAStatus, reconciler.DefaultNAStatus)

	v.SetDefault(KeyLogLevel, string(logger.InfoLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))

	rp := reporter.DefaultReportConfig()
	v.SetDefault(KeyReportMaxListedIDs, rp.MaxListedIDs)
	v.SetDefault(KeyReportProcessingInfo, rp.IncludeProcessingStats)
}

// CreateGatewayConfig builds the gateway client configuration.
// Missing API keys are a configuration error.
func CreateGatewayConfig(v *viper.Viper) (*gateway.Config, error) {
	config := &gateway.Config{
		BaseURL:           v.GetString(KeyRazorpayBaseURL),
		KeyID:             strings.TrimSpace(v.GetString(KeyRazorpayKeyID)),
		KeySecret:         strings.TrimSpace(v.GetString(KeyRazorpayKeySecret)),
		Timeout:           v.GetDuration(KeyRazorpayTimeout),
		RequestsPerSecond: v.GetFloat64(KeyRazorpayRPS),
		Burst:             v.GetInt(KeyRazorpayBurst),
	}

	if !config.HasCredentials() {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "razorpay.key_id/razorpay.key_secret", nil, nil).
			WithSuggestion("Set RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET, or razorpay.key_id and razorpay.key_secret in the config file")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "razorpay", config.BaseURL, err)
	}

	return config, nil
}

// CreateStoreConfig builds the document store configuration.
// A missing connection string is a configuration error.
func CreateStoreConfig(v *viper.Viper) (*store.Config, error) {
	config := &store.Config{
		URI:                    strings.TrimSpace(v.GetString(KeyMongoURI)),
		Database:               v.GetString(KeyMongoDatabase),
		Collection:             v.GetString(KeyMongoCollection),
		ConnectTimeout:         v.GetDuration(KeyMongoConnectTimeout),
		ServerSelectionTimeout: v.GetDuration(KeyMongoSelectTimeout),
		MaxPoolSize:            v.GetUint64(KeyMongoMaxPoolSize),
		AppName:                store.DefaultConfig().AppName,
	}

	if config.URI == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, KeyMongoURI, nil, nil).
			WithSuggestion("Set MONGO_URI or mongo.uri in the config file")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "mongo", nil, err)
	}

	return config, nil
}

// CreateReconcilerConfig builds the reconciliation service configuration
func CreateReconcilerConfig(v *viper.Viper, showProgress bool) (*reconciler.Config, error) {
	location, err := loadLocation(v.GetString(KeyTimezone))
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyTimezone, v.GetString(KeyTimezone), err)
	}

	config := &reconciler.Config{
		DefaultMaxFetch:        v.GetInt(KeyDefaultMaxFetch),
		DefaultOrdersBatchSize: v.GetInt(KeyDefaultBatchSize),
		DefaultNAStatus:        v.GetString(KeyDefaultNAStatus),
		Location:               location,
		ProgressReporting:      showProgress,
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "defaults", nil, err)
	}

	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(v *viper.Viper, format string, pretty bool) (*reporter.ReportConfig, error) {
	config := &reporter.ReportConfig{
		Format:                 reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format))),
		Pretty:                 pretty,
		IncludeProcessingStats: v.GetBool(KeyReportProcessingInfo),
		MaxListedIDs:           v.GetInt(KeyReportMaxListedIDs),
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", format, err).
			WithSuggestion("Use --output-format json or --output-format console")
	}

	return config, nil
}

// CreateLoggerConfig builds the logger configuration. Verbose forces debug level.
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	config := logger.DefaultConfig()
	config.Level = logger.Level(strings.ToLower(v.GetString(KeyLogLevel)))
	config.Format = logger.Format(strings.ToLower(v.GetString(KeyLogFormat)))

	if file := v.GetString(KeyLogFile); file != "" {
		config.Output = logger.FileOutput
		config.File = file
	}

	if verbose {
		config.Level = logger.DebugLevel
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err)
	}

	return config, nil
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(name)
	}
}
