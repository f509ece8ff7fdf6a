// Package payment 支付网关适配、支付查询与回调处理
package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/pkg/xendit"
)

// InvoiceRequest 开单请求
type InvoiceRequest struct {
	ExternalID  string
	Amount      int64
	Description string
	Duration    time.Duration
}

// Invoice 网关账单
type Invoice struct {
	ID         string
	ExternalID string
	Status     string // 网关原始状态
	Amount     int64
	PaidAmount int64
	URL        string
	ExpiresAt  time.Time
	PaidAt     *time.Time
}

// Gateway 支付网关
type Gateway interface {
	CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Invoice, error)
	// GetInvoice 优先按账单 ID 查询，未开单时按外部单号查询
	GetInvoice(ctx context.Context, payment *models.Payment) (*Invoice, error)
}

// ErrInvoiceNotFound 网关上没有该支付的账单
var ErrInvoiceNotFound = stderrors.New("invoice not found")

// NewGateway 按配置创建网关，mock 模式不访问外部网络
func NewGateway(cfg *config.XenditConfig) Gateway {
	if cfg.Mock {
		return NewMockGateway()
	}
	return NewXenditGateway(cfg)
}

// XenditGateway Xendit 账单网关
type XenditGateway struct {
	client *xendit.Client
	cfg    *config.XenditConfig
}

// NewXenditGateway 创建 Xendit 网关
func NewXenditGateway(cfg *config.XenditConfig) *XenditGateway {
	return &XenditGateway{
		client: xendit.NewClient(&xendit.Config{
			BaseURL:   cfg.BaseURL,
			SecretKey: cfg.SecretKey,
			Timeout:   cfg.Timeout,
		}),
		cfg: cfg,
	}
}

// CreateInvoice 创建账单
func (g *XenditGateway) CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Invoice, error) {
	inv, err := g.client.CreateInvoice(ctx, &xendit.CreateInvoiceRequest{
		ExternalID:         req.ExternalID,
		Amount:             req.Amount,
		Description:        req.Description,
		InvoiceDuration:    int(req.Duration / time.Second),
		Currency:           g.cfg.Currency,
		SuccessRedirectURL: g.cfg.SuccessRedirectURL,
		FailureRedirectURL: g.cfg.FailureRedirectURL,
	})
	if err != nil {
		return nil, err
	}
	return fromXendit(inv), nil
}

// GetInvoice 查询账单
func (g *XenditGateway) GetInvoice(ctx context.Context, payment *models.Payment) (*Invoice, error) {
	if payment.GatewayInvoiceID != nil && *payment.GatewayInvoiceID != "" {
		inv, err := g.client.GetInvoice(ctx, *payment.GatewayInvoiceID)
		if err != nil {
			return nil, err
		}
		return fromXendit(inv), nil
	}

	invoices, err := g.client.ListInvoicesByExternalID(ctx, payment.PaymentNo)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ErrInvoiceNotFound
	}
	// 取最后一张，之前的账单可能因重试而作废
	return fromXendit(&invoices[len(invoices)-1]), nil
}

func fromXendit(inv *xendit.Invoice) *Invoice {
	return &Invoice{
		ID:         inv.ID,
		ExternalID: inv.ExternalID,
		Status:     inv.Status,
		Amount:     inv.Amount,
		PaidAmount: inv.PaidAmount,
		URL:        inv.InvoiceURL,
		ExpiresAt:  inv.ExpiryDate,
		PaidAt:     inv.PaidAt,
	}
}

// IsRetryable 网关错误是否可重试
// 网关明确拒绝（4xx）的请求重试无意义
func IsRetryable(err error) bool {
	var apiErr *xendit.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !stderrors.Is(err, context.Canceled)
}

// MapExternalStatus 将网关状态映射为支付状态
// 未识别或仍在处理中的状态返回 false
func MapExternalStatus(status string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID", "SETTLED", "SUCCEEDED":
		return models.PaymentStatusPaid, true
	case "EXPIRED":
		return models.PaymentStatusExpired, true
	case "FAILED":
		return models.PaymentStatusFailed, true
	default:
		return "", false
	}
}

// MockGateway 本地开发使用的内存网关
type MockGateway struct {
	mu       sync.Mutex
	invoices map[string]*Invoice
	seq      int
}

// NewMockGateway 创建内存网关
func NewMockGateway() *MockGateway {
	return &MockGateway{invoices: make(map[string]*Invoice)}
}

// CreateInvoice 生成待支付账单
func (g *MockGateway) CreateInvoice(_ context.Context, req *InvoiceRequest) (*Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("mock_inv_%d", g.seq)
	inv := &Invoice{
		ID:         id,
		ExternalID: req.ExternalID,
		Status:     xendit.InvoiceStatusPending,
		Amount:     req.Amount,
		URL:        "https://checkout.mock.local/" + id,
		ExpiresAt:  time.Now().Add(req.Duration),
	}
	g.invoices[req.ExternalID] = inv
	copied := *inv
	return &copied, nil
}

// GetInvoice 查询账单
func (g *MockGateway) GetInvoice(_ context.Context, payment *models.Payment) (*Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inv, ok := g.invoices[payment.PaymentNo]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	copied := *inv
	return &copied, nil
}

// SetStatus 修改账单状态，模拟用户在收银台的操作
func (g *MockGateway) SetStatus(externalID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if inv, ok := g.invoices[externalID]; ok {
		inv.Status = status
		if mapped, _ := MapExternalStatus(status); mapped == models.PaymentStatusPaid {
			inv.PaidAmount = inv.Amount
			now := time.Now()
			inv.PaidAt = &now
		}
	}
}
