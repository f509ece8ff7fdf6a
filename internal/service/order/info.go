package order

import (
	"time"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/utils"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/payment"
)

// BookingRequest 单个预订请求，对应一个场地的某一天
type BookingRequest struct {
	CourtID int64    `json:"court_id" binding:"required"`
	Date    string   `json:"date" binding:"required"`
	Slots   []string `json:"slots" binding:"required,min=1"`
	// Price 客户端看到的报价合计，与服务端计算不一致时拒绝
	Price *int64 `json:"price,omitempty"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	// UserID 为空时为调用方本人下单
	UserID      int64            `json:"user_id"`
	Bookings    []BookingRequest `json:"bookings" binding:"required,min=1,dive"`
	ChannelName string           `json:"channel_name"`
}

// SlotInfo 时段及价格
type SlotInfo struct {
	Slot  string `json:"slot"`
	Price int64  `json:"price"`
}

// BookingInfo 预订信息
type BookingInfo struct {
	ID           int64      `json:"id"`
	BookingNo    string     `json:"booking_no"`
	CourtID      int64      `json:"court_id"`
	Date         string     `json:"date"`
	Status       string     `json:"status"`
	TotalPrice   int64      `json:"total_price"`
	Slots        []SlotInfo `json:"slots"`
	IsBlocking   bool       `json:"is_blocking"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
}

// OrderInfo 订单信息
type OrderInfo struct {
	ID              int64                `json:"id"`
	OrderNo         string               `json:"order_no"`
	UserID          int64                `json:"user_id"`
	Status          string               `json:"status"`
	TotalAmount     int64                `json:"total_amount"`
	TotalAmountText string               `json:"total_amount_text"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Bookings        []BookingInfo        `json:"bookings"`
	Payment         *payment.PaymentInfo `json:"payment,omitempty"`
}

// OrderListItem 订单列表项
type OrderListItem struct {
	ID              int64     `json:"id"`
	OrderNo         string    `json:"order_no"`
	Status          string    `json:"status"`
	TotalAmount     int64     `json:"total_amount"`
	TotalAmountText string    `json:"total_amount_text"`
	BookingCount    int       `json:"booking_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// OrderListResponse 订单列表
type OrderListResponse struct {
	List       []OrderListItem   `json:"list"`
	Pagination *utils.Pagination `json:"pagination"`
}

func newBookingInfo(b *models.Booking) BookingInfo {
	info := BookingInfo{
		ID:           b.ID,
		BookingNo:    b.BookingNo,
		CourtID:      b.CourtID,
		Date:         b.BookingDate,
		Status:       b.Status,
		TotalPrice:   b.TotalPrice,
		Slots:        make([]SlotInfo, 0, len(b.Slots)),
		IsBlocking:   b.IsBlocking(),
		CancelReason: b.CancelReason,
	}
	for i := range b.Slots {
		info.Slots = append(info.Slots, SlotInfo{Slot: b.Slots[i].Label(), Price: b.Slots[i].Price})
	}
	return info
}

func newOrderListItem(o *models.Order) OrderListItem {
	return OrderListItem{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		TotalAmountText: utils.FormatRupiah(o.TotalAmount),
		BookingCount:    len(o.Bookings),
		CreatedAt:       o.CreatedAt,
	}
}
