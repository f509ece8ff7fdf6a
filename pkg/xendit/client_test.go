package xendit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{BaseURL: server.URL + "/", SecretKey: "xnd_test", Timeout: 2 * time.Second})
}

func TestCreateInvoice_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/invoices", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "xnd_test", user)
		assert.Empty(t, pass)

		var req CreateInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PAY001", req.ExternalID)
		assert.Equal(t, int64(250000), req.Amount)
		assert.Equal(t, 1800, req.InvoiceDuration)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"inv_1","external_id":"PAY001","status":"PENDING","amount":250000,
			"invoice_url":"https://checkout.xendit.co/web/inv_1","expiry_date":"2026-10-20T10:00:00Z"}`))
	})

	invoice, err := client.CreateInvoice(context.Background(), &CreateInvoiceRequest{
		ExternalID:      "PAY001",
		Amount:          250000,
		InvoiceDuration: 1800,
		Currency:        "IDR",
	})
	require.NoError(t, err)
	assert.Equal(t, "inv_1", invoice.ID)
	assert.Equal(t, InvoiceStatusPending, invoice.Status)
	assert.Equal(t, "https://checkout.xendit.co/web/inv_1", invoice.InvoiceURL)
	assert.Equal(t, time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC), invoice.ExpiryDate)
}

func TestCreateInvoice_APIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		temporary bool
		message   string
	}{
		{"validation", http.StatusBadRequest, `{"error_code":"API_VALIDATION_ERROR","message":"amount is required"}`, false, "amount is required"},
		{"rate limited", http.StatusTooManyRequests, `{"error_code":"RATE_LIMIT_EXCEEDED","message":"slow down"}`, true, "slow down"},
		{"server error plain body", http.StatusBadGateway, `upstream failure`, true, "upstream failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.CreateInvoice(context.Background(), &CreateInvoiceRequest{ExternalID: "X"})
			require.Error(t, err)
			var apiErr *APIError
			require.True(t, stderrors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.temporary, apiErr.Temporary())
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestGetInvoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/invoices/inv_9", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"inv_9","external_id":"PAY9","status":"SETTLED","amount":100,"paid_amount":100,"paid_at":"2026-10-19T08:00:00Z"}`))
	})

	invoice, err := client.GetInvoice(context.Background(), "inv_9")
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusSettled, invoice.Status)
	assert.Equal(t, int64(100), invoice.PaidAmount)
	require.NotNil(t, invoice.PaidAt)
}

func TestListInvoicesByExternalID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PAY 1", r.URL.Query().Get("external_id"))
		_, _ = w.Write([]byte(`[{"id":"a","external_id":"PAY 1","status":"EXPIRED"},{"id":"b","external_id":"PAY 1","status":"PENDING"}]`))
	})

	invoices, err := client.ListInvoicesByExternalID(context.Background(), "PAY 1")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, "b", invoices[1].ID)
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetInvoice(ctx, "inv_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
