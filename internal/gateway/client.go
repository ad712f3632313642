package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"payment-reconciliation-service/internal/models"
	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

const paymentsPath = "/payments"

// maxErrorBody bounds how much of a failed response body is kept
const maxErrorBody = 64 << 10

// Client is a Razorpay API client. It is safe for concurrent use and meant to be
// created once per process.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

// NewClient creates a new gateway client
func NewClient(config *Config, log logger.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "gateway", config.BaseURL, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("gateway")

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, config.Burst),
		logger:     log,
	}

	return c, nil
}

// ListPayments fetches a single page of payments
func (c *Client) ListPayments(ctx context.Context, params url.Values) (*models.PaymentPage, error) {
	var page models.PaymentPage
	if err := c.get(ctx, paymentsPath, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// get issues an authenticated GET and decodes the JSON response into out
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NetworkError(errors.CodeTimeout, endpoint, err)
	}

	body, err := c.do(ctx, endpoint, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.ParseError(errors.CodeInvalidFormat, endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := endpoint
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "build gateway request", err)
	}
	req.SetBasicAuth(c.config.KeyID, c.config.KeySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkError(transportErrorCode(err), endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WithFields(logger.Fields{
			"endpoint":    endpoint,
			"status_code": resp.StatusCode,
		}).Warn("Gateway returned an error status")
		return nil, errors.UpstreamStatusError(endpoint, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkError(transportErrorCode(err), endpoint, err)
	}
	return body, nil
}

func transportErrorCode(err error) errors.ErrorCode {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.CodeTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.CodeTimeout
	}
	return errors.CodeConnectionFailed
}
