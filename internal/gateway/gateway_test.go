package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

type fakeGateway struct {
	mu       sync.Mutex
	payments []map[string]interface{}
	requests []*http.Request
	status   int
	body     string
}

func newFakeGateway(n int, statusOf func(i int) string) *fakeGateway {
	g := &fakeGateway{}
	for i := 0; i < n; i++ {
		g.payments = append(g.payments, map[string]interface{}{
			"id":       fmt.Sprintf("pay_%05d", i),
			"entity":   "payment",
			"amount":   10000 + i,
			"currency": "INR",
			"status":   statusOf(i),
		})
	}
	return g
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.requests = append(g.requests, r)
	g.mu.Unlock()

	if g.status != 0 {
		w.WriteHeader(g.status)
		_, _ = w.Write([]byte(g.body))
		return
	}

	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	end := skip + count
	if end > len(g.payments) {
		end = len(g.payments)
	}
	items := []map[string]interface{}{}
	if skip < len(g.payments) {
		items = g.payments[skip:end]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"entity": "collection",
		"count":  len(items),
		"items":  items,
	})
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func captured(int) string { return "captured" }

func testConfig(baseURL string) *Config {
	config := DefaultConfig()
	config.BaseURL = baseURL
	config.KeyID = "rzp_test_key"
	config.KeySecret = "secret"
	config.RequestsPerSecond = 0
	config.Timeout = 5 * time.Second
	return config
}

func newTestPaginator(t *testing.T, config *Config) *Paginator {
	t.Helper()
	base, _ := test.NewNullLogger()
	log := logger.FromLogrus(base)

	client, err := NewClient(config, log)
	require.NoError(t, err)
	return NewPaginator(client, log)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantError bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing key id", func(c *Config) { c.KeyID = "" }, true},
		{"blank secret", func(c *Config) { c.KeySecret = "  " }, true},
		{"bad base url", func(c *Config) { c.BaseURL = "not a url" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, true},
		{"pacing without burst", func(c *Config) { c.RequestsPerSecond = 5; c.Burst = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig("https://api.example.com/v1")
			tt.modify(config)
			err := config.Validate()
			assert.Equal(t, tt.wantError, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	config := testConfig("https://api.example.com/v1")
	config.KeySecret = ""

	_, err := NewClient(config, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
}

func TestFetchPaymentsPagesUntilShortPage(t *testing.T) {
	gw := newFakeGateway(250, captured)
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	payments, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 1000})
	require.NoError(t, err)

	assert.Len(t, payments, 250)
	assert.Equal(t, "pay_00000", payments[0].ID)
	assert.Equal(t, "pay_00249", payments[249].ID)
	require.Equal(t, 3, gw.requestCount())

	for i, r := range gw.requests {
		q := r.URL.Query()
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "100", q.Get("count"))
		assert.Equal(t, strconv.Itoa(i*MaxPageSize), q.Get("skip"))
		assert.Equal(t, "card", q.Get("expand[]"))
		assert.Empty(t, q.Get("from"))
		assert.Empty(t, q.Get("to"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)
	}
}

func TestFetchPaymentsExactPageMultiple(t *testing.T) {
	gw := newFakeGateway(200, captured)
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	payments, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 1000})
	require.NoError(t, err)

	assert.Len(t, payments, 200)
	assert.Equal(t, 3, gw.requestCount(), "an empty page ends the walk")
}

func TestFetchPaymentsTruncatesToMaxFetch(t *testing.T) {
	gw := newFakeGateway(500, captured)
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	payments, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 150})
	require.NoError(t, err)

	assert.Len(t, payments, 150)
	assert.Equal(t, "pay_00149", payments[149].ID)
	assert.Equal(t, 2, gw.requestCount())
}

func TestFetchPaymentsStatusFilter(t *testing.T) {
	gw := newFakeGateway(300, func(i int) string {
		if i%2 == 0 {
			return "Captured"
		}
		return "failed"
	})
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	payments, err := paginator.FetchPayments(context.Background(), PaymentQuery{
		StatusFilter: "CAPTURED",
		MaxFetch:     1000,
	})
	require.NoError(t, err)

	// the first filtered page holds 50 payments, which counts as a short page
	assert.Len(t, payments, 50)
	assert.Equal(t, 1, gw.requestCount())
	for _, p := range payments {
		assert.True(t, p.HasStatus("captured"), "unexpected status %s", p.Status)
	}
}

func TestFetchPaymentsDateWindow(t *testing.T) {
	gw := newFakeGateway(3, captured)
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	_, err := paginator.FetchPayments(context.Background(), PaymentQuery{From: &from, To: &to, MaxFetch: 10})
	require.NoError(t, err)

	require.Equal(t, 1, gw.requestCount())
	q := gw.requests[0].URL.Query()
	assert.Equal(t, strconv.FormatInt(from.Unix(), 10), q.Get("from"))
	assert.Equal(t, strconv.FormatInt(to.Unix(), 10), q.Get("to"))
}

func TestFetchPaymentsUpstreamStatus(t *testing.T) {
	gw := newFakeGateway(0, captured)
	gw.status = http.StatusUnauthorized
	gw.body = `{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	payments, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 10})
	require.Error(t, err)
	assert.Nil(t, payments)

	rErr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryUpstream, rErr.Category)
	assert.Equal(t, http.StatusUnauthorized, rErr.StatusCode())
	assert.Equal(t, gw.body, rErr.Context["body"])
}

func TestFetchPaymentsAbortsOnLaterPageFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		items := make([]map[string]interface{}, MaxPageSize)
		for i := range items {
			items[i] = map[string]interface{}{"id": fmt.Sprintf("pay_%d", i), "status": "captured"}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
	}))
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	payments, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 1000})
	require.Error(t, err)
	assert.Nil(t, payments, "no partial result on failure")
	assert.True(t, errors.HasCategory(err, errors.CategoryUpstream))
}

func TestFetchPaymentsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	paginator := newTestPaginator(t, testConfig(url))

	_, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 10})
	require.Error(t, err)

	rErr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryNetwork, rErr.Category)
	assert.Equal(t, errors.CodeConnectionFailed, rErr.Code)
}

func TestFetchPaymentsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	_, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 10})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryParse))
}

func TestFetchPaymentsFailsWithoutRetry(t *testing.T) {
	gw := newFakeGateway(0, captured)
	gw.status = http.StatusBadGateway
	server := httptest.NewServer(gw)
	defer server.Close()

	paginator := newTestPaginator(t, testConfig(server.URL))

	for i := 1; i <= 3; i++ {
		_, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 10})
		rErr, ok := errors.AsReconcilerError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CategoryUpstream, rErr.Category)
		assert.Equal(t, http.StatusBadGateway, rErr.StatusCode())
		assert.Equal(t, i, gw.requestCount(), "each fetch makes exactly one request")
	}
}

func TestFetchPaymentsCancelledContext(t *testing.T) {
	gw := newFakeGateway(10, captured)
	server := httptest.NewServer(gw)
	defer server.Close()

	config := testConfig(server.URL)
	config.RequestsPerSecond = 1
	config.Burst = 1
	paginator := newTestPaginator(t, config)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := paginator.FetchPayments(ctx, PaymentQuery{MaxFetch: 10})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
	assert.Equal(t, 0, gw.requestCount())
}

func TestFetchPaymentsRejectsNonPositiveMaxFetch(t *testing.T) {
	paginator := newTestPaginator(t, testConfig("https://api.example.com/v1"))

	_, err := paginator.FetchPayments(context.Background(), PaymentQuery{MaxFetch: 0})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
