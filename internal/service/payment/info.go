package payment

import (
	"time"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/qrcode"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/utils"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// PaymentInfo 支付信息
type PaymentInfo struct {
	ID           int64      `json:"id"`
	PaymentNo    string     `json:"payment_no"`
	OrderID      int64      `json:"order_id"`
	Status       string     `json:"status"`
	Amount       int64      `json:"amount"`
	AmountText   string     `json:"amount_text"`
	ChannelName  string     `json:"channel_name"`
	InvoiceURL   *string    `json:"invoice_url,omitempty"`
	InvoiceQR    string     `json:"invoice_qr,omitempty"` // data URL
	PaidAmount   *int64     `json:"paid_amount,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// OrderSummary 支付所属订单摘要
type OrderSummary struct {
	ID          int64  `json:"id"`
	OrderNo     string `json:"order_no"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
}

// PaymentStatusInfo 支付状态查询结果
type PaymentStatusInfo struct {
	Payment *PaymentInfo  `json:"payment"`
	Order   *OrderSummary `json:"order,omitempty"`
}

// NewPaymentInfo 转换支付信息，待支付且已开单时附带收银台二维码
func NewPaymentInfo(p *models.Payment, qr *qrcode.Generator) *PaymentInfo {
	if p == nil {
		return nil
	}
	info := &PaymentInfo{
		ID:           p.ID,
		PaymentNo:    p.PaymentNo,
		OrderID:      p.OrderID,
		Status:       p.Status,
		Amount:       p.Amount,
		AmountText:   utils.FormatRupiah(p.Amount),
		ChannelName:  p.ChannelName,
		InvoiceURL:   p.InvoiceURL,
		PaidAmount:   p.PaidAmount,
		PaidAt:       p.PaidAt,
		ExpiredAt:    p.ExpiredAt,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    p.CreatedAt,
	}
	if qr != nil && p.Status == models.PaymentStatusUnpaid && p.HasInvoice() {
		if dataURL, err := qr.DataURL(*p.InvoiceURL); err == nil {
			info.InvoiceQR = dataURL
		}
	}
	return info
}

// NewOrderSummary 转换订单摘要
func NewOrderSummary(o *models.Order) *OrderSummary {
	if o == nil {
		return nil
	}
	return &OrderSummary{
		ID:          o.ID,
		OrderNo:     o.OrderNo,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
	}
}
