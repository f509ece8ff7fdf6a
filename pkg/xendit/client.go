// Package xendit 提供 Xendit 账单（Invoice）API 客户端
package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config Xendit 客户端配置
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client Xendit 客户端
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient 创建 Xendit 客户端，请求经由 otelhttp 传输层记录链路
func NewClient(config *Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// 账单状态
const (
	InvoiceStatusPending = "PENDING"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusSettled = "SETTLED"
	InvoiceStatusExpired = "EXPIRED"
)

// CreateInvoiceRequest 创建账单请求
type CreateInvoiceRequest struct {
	ExternalID         string `json:"external_id"`
	Amount             int64  `json:"amount"`
	Description        string `json:"description,omitempty"`
	InvoiceDuration    int    `json:"invoice_duration,omitempty"` // 秒
	Currency           string `json:"currency,omitempty"`
	SuccessRedirectURL string `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string `json:"failure_redirect_url,omitempty"`
}

// Invoice 账单
type Invoice struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	Amount     int64      `json:"amount"`
	PaidAmount int64      `json:"paid_amount,omitempty"`
	InvoiceURL string     `json:"invoice_url"`
	ExpiryDate time.Time  `json:"expiry_date"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
}

// APIError 网关返回的错误
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xendit: %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}

// Temporary 是否值得重试（限流或服务端错误）
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// CreateInvoice 创建账单
func (c *Client) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*Invoice, error) {
	var invoice Invoice
	if err := c.do(ctx, http.MethodPost, "/v2/invoices", req, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoice 按账单 ID 查询
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var invoice Invoice
	if err := c.do(ctx, http.MethodGet, "/v2/invoices/"+url.PathEscape(invoiceID), nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListInvoicesByExternalID 按外部单号查询账单
func (c *Client) ListInvoicesByExternalID(ctx context.Context, externalID string) ([]Invoice, error) {
	var invoices []Invoice
	path := "/v2/invoices?external_id=" + url.QueryEscape(externalID)
	if err := c.do(ctx, http.MethodGet, path, nil, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("xendit: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("xendit: build request: %w", err)
	}
	req.SetBasicAuth(c.config.SecretKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("xendit: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("xendit: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("xendit: decode response: %w", err)
	}
	return nil
}
