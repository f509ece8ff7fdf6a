// Package status 支付、预订、订单三者的状态同步
package status

import (
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/utils"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// 触发来源，写入状态记录
const (
	TriggerWebhook   = "webhook"
	TriggerReconcile = "reconcile"
	TriggerExpiry    = "expiry"
	TriggerStaff     = "staff"
	TriggerOwner     = "owner"
	TriggerBlocking  = "blocking"
	TriggerCreate    = "create"
)

// paymentCascade 支付终态对应的预订、订单目标状态
type paymentCascade struct {
	booking string
	order   string
}

var paymentCascades = map[string]paymentCascade{
	models.PaymentStatusPaid:    {booking: models.BookingStatusUpcoming, order: models.OrderStatusPaid},
	models.PaymentStatusExpired: {booking: models.BookingStatusCancelled, order: models.OrderStatusExpired},
	models.PaymentStatusFailed:  {booking: models.BookingStatusCancelled, order: models.OrderStatusFailed},
}

// bookingTransitions 人工操作允许的预订迁移：目标状态 -> 允许的当前状态
var bookingTransitions = map[string][]string{
	models.BookingStatusCompleted: {models.BookingStatusUpcoming},
	models.BookingStatusNoShow:    {models.BookingStatusUpcoming},
	models.BookingStatusCancelled: {models.BookingStatusPending, models.BookingStatusUpcoming},
}

// CanTransitionBooking 人工操作是否允许该迁移
func CanTransitionBooking(from, to string) bool {
	allowed, ok := bookingTransitions[to]
	return ok && utils.Contains(allowed, from)
}

// IsTerminalPayment 支付是否处于终态
func IsTerminalPayment(status string) bool {
	return status != models.PaymentStatusUnpaid
}

// orderTargetAfterBookings 根据全部预订状态推导订单目标状态
// 全部取消 -> CANCELLED；全部履约结束（完成或未到场）-> COMPLETED
func orderTargetAfterBookings(bookings []*models.Booking) (string, bool) {
	if len(bookings) == 0 {
		return "", false
	}
	allCancelled, allFinished := true, true
	for _, b := range bookings {
		if b.Status != models.BookingStatusCancelled {
			allCancelled = false
		}
		if b.Status != models.BookingStatusCompleted && b.Status != models.BookingStatusNoShow {
			allFinished = false
		}
	}
	switch {
	case allCancelled:
		return models.OrderStatusCancelled, true
	case allFinished:
		return models.OrderStatusCompleted, true
	}
	return "", false
}
