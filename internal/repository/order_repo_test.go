// Package repository 订单仓储单元测试
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

func TestOrderRepository_CreateAndGetWithDetails(t *testing.T) {
	db := setupTestDB(t)
	orderRepo := NewOrderRepository(db)
	bookingRepo := NewBookingRepository(db)
	paymentRepo := NewPaymentRepository(db)
	ctx := context.Background()
	court := createTestCourt(t, db)

	order := &models.Order{OrderNo: "ORD001", UserID: 1, Status: models.OrderStatusPending, TotalAmount: 200}
	require.NoError(t, orderRepo.Create(ctx, order))

	b1 := newTestBooking(court.ID, "BK001", "10:00")
	b1.OrderID = &order.ID
	b2 := newTestBooking(court.ID, "BK002", "09:00")
	b2.OrderID = &order.ID
	require.NoError(t, bookingRepo.Create(ctx, b1))
	require.NoError(t, bookingRepo.Create(ctx, b2))
	require.NoError(t, paymentRepo.Create(ctx, &models.Payment{
		PaymentNo: "PAY001", OrderID: order.ID, UserID: 1, Amount: 200,
		ChannelName: models.PaymentChannelXendit, Status: models.PaymentStatusUnpaid,
	}))

	found, err := orderRepo.GetByIDWithDetails(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Bookings, 2)
	assert.Equal(t, "BK001", found.Bookings[0].BookingNo)
	require.Len(t, found.Bookings[0].Slots, 1)
	require.NotNil(t, found.Payment)
	assert.Equal(t, "PAY001", found.Payment.PaymentNo)
}

func TestOrderRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	for i, o := range []struct {
		no     string
		user   int64
		status string
	}{
		{"ORD001", 1, models.OrderStatusPending},
		{"ORD002", 1, models.OrderStatusPaid},
		{"ORD003", 2, models.OrderStatusPaid},
	} {
		require.NoError(t, repo.Create(ctx, &models.Order{
			OrderNo: o.no, UserID: o.user, Status: o.status, TotalAmount: int64(100 * (i + 1)),
		}))
	}

	list, total, err := repo.List(ctx, 1, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "ORD002", list[0].OrderNo)

	list, total, err = repo.List(ctx, 0, models.OrderStatusPaid, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	list, total, err = repo.List(ctx, 0, "", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 1)
}

func TestOrderRepository_UpdateStatusFrom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &models.Order{OrderNo: "ORD001", UserID: 1, Status: models.OrderStatusPending, TotalAmount: 100}
	require.NoError(t, repo.Create(ctx, order))

	now := time.Now()
	rows, err := repo.UpdateStatusFrom(ctx, order.ID, models.OrderStatusPending, models.OrderStatusPaid,
		map[string]interface{}{"paid_at": now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.UpdateStatusFrom(ctx, order.ID, models.OrderStatusPending, models.OrderStatusExpired, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	found, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, found.Status)
	assert.NotNil(t, found.PaidAt)
}
