package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/jwt"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/events"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/court"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/payment"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/testutil"
	"github.com/Yolo-Padel/yolo-padel-sub002/pkg/xendit"
)

var (
	user    = authz.Caller{UserID: 1, Role: jwt.RoleUser}
	other   = authz.Caller{UserID: 2, Role: jwt.RoleUser}
	staffer = authz.Caller{UserID: 900, Role: jwt.RoleStaff}
)

// failingGateway 总是拒绝开单
type failingGateway struct{}

func (failingGateway) CreateInvoice(context.Context, *payment.InvoiceRequest) (*payment.Invoice, error) {
	return nil, &xendit.APIError{StatusCode: 400, Message: "invalid api key"}
}

func (failingGateway) GetInvoice(context.Context, *models.Payment) (*payment.Invoice, error) {
	return nil, payment.ErrInvoiceNotFound
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *capturingPublisher) Driver() string { return "capture" }
func (p *capturingPublisher) Close() error   { return nil }

type orderFixture struct {
	db        *gorm.DB
	service   *OrderService
	courts    *court.CourtService
	publisher *capturingPublisher
	court     *models.Court
	date      time.Time
}

func setupOrderService(t *testing.T, gw payment.Gateway) *orderFixture {
	t.Helper()
	return newOrderFixture(t, testutil.NewDB(t), gw)
}

func newOrderFixture(t *testing.T, db *gorm.DB, gw payment.Gateway) *orderFixture {
	t.Helper()
	c, _ := testutil.NewCache(t)

	courtRepo := repository.NewCourtRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	authorizer := authz.NewAuthorizer()

	courts := court.NewCourtService(courtRepo, repository.NewPriceRuleRepository(db), bookingRepo, c, nil, nil, court.Options{
		Location: time.UTC,
		CacheTTL: time.Minute,
	})
	engine := status.NewEngine(db, paymentRepo, orderRepo, bookingRepo, historyRepo, authorizer, nil, courts, nil, nil)
	payments := payment.NewPaymentService(paymentRepo, orderRepo, gw, engine, authorizer, nil, nil, payment.Options{
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
	})
	pub := &capturingPublisher{}
	svc := NewOrderService(db, courtRepo, orderRepo, bookingRepo, paymentRepo, historyRepo, courts, payments, authorizer, pub, nil, nil, Options{
		InvoiceTTL:          30 * time.Minute,
		MaxBookingsPerOrder: 3,
	})

	// 一周后的同一天，保证时段尚未开始
	date := time.Now().UTC().AddDate(0, 0, 7)
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	return &orderFixture{
		db:        db,
		service:   svc,
		courts:    courts,
		publisher: pub,
		court:     testutil.SeedCourt(t, db, 100, "06:00", "23:00"),
		date:      date,
	}
}

func (f *orderFixture) dateStr() string {
	return f.date.Format(court.DateLayout)
}

func (f *orderFixture) request(slots ...string) *CreateOrderRequest {
	return &CreateOrderRequest{
		Bookings: []BookingRequest{{CourtID: f.court.ID, Date: f.dateStr(), Slots: slots}},
	}
}

// ==================== CreateOrder 测试 ====================

func TestCreateOrder_PricedWithWeekdayRule(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	testutil.SeedWeekdayRule(t, f.db, f.court.ID, int(f.date.Weekday()), "10:00", "11:00", 150)

	info, err := f.service.CreateOrder(context.Background(), user, f.request("10:00-11:00", "09:00-10:00"))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, info.Status)
	assert.Equal(t, int64(250), info.TotalAmount)
	require.Len(t, info.Bookings, 1)
	booking := info.Bookings[0]
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, []SlotInfo{{Slot: "09:00-10:00", Price: 100}, {Slot: "10:00-11:00", Price: 150}}, booking.Slots)

	require.NotNil(t, info.Payment)
	assert.Equal(t, models.PaymentStatusUnpaid, info.Payment.Status)
	assert.Equal(t, int64(250), info.Payment.Amount)
	assert.Equal(t, models.PaymentChannelXendit, info.Payment.ChannelName)
	require.NotNil(t, info.Payment.InvoiceURL)
	assert.NotEmpty(t, info.Payment.InvoiceQR)
	require.NotNil(t, info.Payment.ExpiredAt)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *info.Payment.ExpiredAt, time.Minute)

	assert.Equal(t, int64(2), testutil.ActiveSlotCount(t, f.db, f.court.ID, f.dateStr()))

	histories, err := repository.NewStatusHistoryRepository(f.db).ListByEntity(context.Background(), models.StatusEntityOrder, info.ID)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, status.TriggerCreate, histories[0].Trigger)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, "booking.status.PENDING", f.publisher.events[1].RoutingKey())
}

func TestCreateOrder_MultipleBookings(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	second := testutil.SeedCourt(t, f.db, 200, "06:00", "23:00")

	info, err := f.service.CreateOrder(context.Background(), user, &CreateOrderRequest{
		Bookings: []BookingRequest{
			{CourtID: second.ID, Date: f.dateStr(), Slots: []string{"18:00-19:00"}},
			{CourtID: f.court.ID, Date: f.dateStr(), Slots: []string{"18:00-19:00", "19:00-20:00"}},
			{CourtID: f.court.ID, Date: f.dateStr(), Slots: []string{"07:00-08:00"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(200+200+100), info.TotalAmount)
	require.Len(t, info.Bookings, 3)
	assert.Equal(t, info.TotalAmount, info.Payment.Amount)
}

func TestCreateOrder_ConflictWithExistingBooking(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, user, f.request("09:00-10:00"))
	require.NoError(t, err)

	_, err = f.service.CreateOrder(ctx, other, f.request("08:00-09:00", "09:00-10:00"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindSlotConflict))
	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	details := appErr.Details.(map[string]interface{})
	assert.Equal(t, []string{"09:00-10:00"}, details["slots"])

	assert.Equal(t, int64(1), testutil.ActiveSlotCount(t, f.db, f.court.ID, f.dateStr()))
	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
}

func TestCreateOrder_ConcurrentSameSlot(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	const n = 5

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			caller := authz.Caller{UserID: uid, Role: jwt.RoleUser}
			_, err := f.service.CreateOrder(context.Background(), caller, f.request("09:00-10:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.IsKind(err, errors.KindSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, int64(1), testutil.ActiveSlotCount(t, f.db, f.court.ID, f.dateStr()))
}

func TestCreateOrder_UniqueViolationReportsOnlyTakenSlots(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, user, f.request("09:00-10:00"))
	require.NoError(t, err)

	// 模拟在加锁校验之后才提交的并发胜者：事务以唯一索引冲突回滚
	_, plans, err := f.service.validate(other, f.request("08:00-09:00", "09:00-10:00"))
	require.NoError(t, err)
	err = f.service.createError(ctx, gorm.ErrDuplicatedKey, plans)

	assert.True(t, errors.IsKind(err, errors.KindSlotConflict))
	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	details := appErr.Details.([]map[string]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, f.court.ID, details[0]["court_id"])
	assert.Equal(t, []string{"09:00-10:00"}, details[0]["slots"])
}

func TestCreateOrder_UniqueViolationWithoutOverlapReportsRequest(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())

	_, plans, err := f.service.validate(other, f.request("08:00-09:00"))
	require.NoError(t, err)
	err = f.service.createError(context.Background(), gorm.ErrDuplicatedKey, plans)

	appErr := errors.GetAppError(err)
	require.NotNil(t, appErr)
	details := appErr.Details.([]map[string]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, []string{"08:00-09:00"}, details[0]["slots"])
}

func TestCreateOrder_ReleasedSlotCanBeRebooked(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	first, err := f.service.CreateOrder(ctx, user, f.request("09:00-10:00"))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.BookingSlot{}).
		Where("booking_id = ?", first.Bookings[0].ID).
		Update("active", false).Error)
	require.NoError(t, f.db.Model(&models.Booking{}).
		Where("id = ?", first.Bookings[0].ID).
		Update("status", models.BookingStatusCancelled).Error)

	_, err = f.service.CreateOrder(ctx, other, f.request("09:00-10:00"))
	assert.NoError(t, err)
}

func TestCreateOrder_PriceMismatch(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	quoted := int64(100)
	req := f.request("09:00-10:00", "10:00-11:00")
	req.Bookings[0].Price = &quoted

	_, err := f.service.CreateOrder(context.Background(), user, req)
	assert.ErrorIs(t, err, errors.ErrPriceMismatch)
	assert.Zero(t, testutil.ActiveSlotCount(t, f.db, f.court.ID, f.dateStr()))

	quoted = 200
	_, err = f.service.CreateOrder(context.Background(), user, req)
	assert.NoError(t, err)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	past := time.Now().UTC().AddDate(0, 0, -1).Format(court.DateLayout)

	tests := []struct {
		name string
		req  *CreateOrderRequest
		want *errors.AppError
	}{
		{"无预订", &CreateOrderRequest{}, errors.ErrInvalidParams},
		{"超过上限", &CreateOrderRequest{Bookings: make([]BookingRequest, 4)}, errors.ErrInvalidParams},
		{"日期格式", &CreateOrderRequest{Bookings: []BookingRequest{{CourtID: f.court.ID, Date: "2026/10/20", Slots: []string{"09:00-10:00"}}}}, errors.ErrDateInvalid},
		{"时段格式", f.request("09:00-11:00"), errors.ErrTimeSlotInvalid},
		{"时段为空", f.request(), errors.ErrTimeSlotInvalid},
		{"时段重复", f.request("09:00-10:00", "09:00-10:00"), errors.ErrTimeSlotInvalid},
		{"跨预订重叠", &CreateOrderRequest{Bookings: []BookingRequest{
			{CourtID: f.court.ID, Date: f.dateStr(), Slots: []string{"09:00-10:00"}},
			{CourtID: f.court.ID, Date: f.dateStr(), Slots: []string{"09:00-10:00"}},
		}}, errors.ErrTimeSlotInvalid},
		{"已开始", &CreateOrderRequest{Bookings: []BookingRequest{{CourtID: f.court.ID, Date: past, Slots: []string{"09:00-10:00"}}}}, errors.ErrSlotStarted},
		{"场地不存在", &CreateOrderRequest{Bookings: []BookingRequest{{CourtID: 9999, Date: f.dateStr(), Slots: []string{"09:00-10:00"}}}}, errors.ErrCourtNotFound},
		{"不在营业时间", f.request("03:00-04:00"), errors.ErrSlotConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), user, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, testutil.ActiveSlotCount(t, f.db, f.court.ID, f.dateStr()))
}

func TestCreateOrder_DisabledCourt(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	require.NoError(t, f.db.Model(f.court).Update("status", models.CourtStatusDisabled).Error)

	_, err := f.service.CreateOrder(context.Background(), user, f.request("09:00-10:00"))
	assert.ErrorIs(t, err, errors.ErrCourtDisabled)
}

func TestCreateOrder_Authorization(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, authz.Caller{}, f.request("09:00-10:00"))
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))

	req := f.request("09:00-10:00")
	req.UserID = other.UserID
	_, err = f.service.CreateOrder(ctx, user, req)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	info, err := f.service.CreateOrder(ctx, staffer, req)
	require.NoError(t, err)
	assert.Equal(t, other.UserID, info.UserID)
}

func TestCreateOrder_GatewayFailureKeepsOrder(t *testing.T) {
	f := setupOrderService(t, failingGateway{})

	info, err := f.service.CreateOrder(context.Background(), user, f.request("09:00-10:00"))
	assert.ErrorIs(t, err, errors.ErrGatewayUnavailable)
	require.NotNil(t, info)
	assert.Equal(t, models.OrderStatusPending, info.Status)
	require.NotNil(t, info.Payment)
	assert.Nil(t, info.Payment.InvoiceURL)
	require.NotNil(t, info.Payment.ErrorMessage)

	order := testutil.Reload[models.Order](t, f.db, info.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(1), testutil.ActiveSlotCount(t, f.db, f.court.ID, f.dateStr()))
}

func TestCreateOrder_InvalidatesAvailabilityCache(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	before, err := f.courts.GetAvailability(ctx, f.court.ID, f.dateStr())
	require.NoError(t, err)
	assert.Contains(t, before.Slots, "09:00-10:00")

	_, err = f.service.CreateOrder(ctx, user, f.request("09:00-10:00"))
	require.NoError(t, err)

	after, err := f.courts.GetAvailability(ctx, f.court.ID, f.dateStr())
	require.NoError(t, err)
	assert.NotContains(t, after.Slots, "09:00-10:00")
	assert.Len(t, after.Slots, len(before.Slots)-1)
}

// ==================== 查询测试 ====================

func TestGetOrder(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	created, err := f.service.CreateOrder(ctx, user, f.request("09:00-10:00"))
	require.NoError(t, err)

	got, err := f.service.GetOrder(ctx, user, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.OrderNo, got.OrderNo)
	require.Len(t, got.Bookings, 1)
	assert.Equal(t, []SlotInfo{{Slot: "09:00-10:00", Price: 100}}, got.Bookings[0].Slots)
	require.NotNil(t, got.Payment)
	assert.Equal(t, created.Payment.PaymentNo, got.Payment.PaymentNo)

	_, err = f.service.GetOrder(ctx, other, created.ID)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	_, err = f.service.GetOrder(ctx, staffer, created.ID)
	assert.NoError(t, err)

	_, err = f.service.GetOrder(ctx, user, 9999)
	assert.ErrorIs(t, err, errors.ErrOrderNotFound)
}

func TestGetOrderHistory(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	created, err := f.service.CreateOrder(ctx, user, f.request("09:00-10:00", "10:00-11:00"))
	require.NoError(t, err)

	history, err := f.service.GetOrderHistory(ctx, user, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.StatusEntityOrder, history[0].EntityType)
	assert.Equal(t, models.StatusEntityBooking, history[1].EntityType)
	assert.Equal(t, models.StatusEntityPayment, history[2].EntityType)
	for _, h := range history {
		assert.Equal(t, status.TriggerCreate, h.Trigger)
		require.NotNil(t, h.ActorID)
		assert.Equal(t, user.UserID, *h.ActorID)
	}

	_, err = f.service.GetOrderHistory(ctx, other, created.ID)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	_, err = f.service.GetOrderHistory(ctx, authz.Caller{}, created.ID)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestListOrders(t *testing.T) {
	f := setupOrderService(t, payment.NewMockGateway())
	ctx := context.Background()

	for _, slot := range []string{"09:00-10:00", "10:00-11:00", "11:00-12:00"} {
		_, err := f.service.CreateOrder(ctx, user, f.request(slot))
		require.NoError(t, err)
	}
	_, err := f.service.CreateOrder(ctx, other, f.request("12:00-13:00"))
	require.NoError(t, err)

	resp, err := f.service.ListOrders(ctx, user, "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	require.Len(t, resp.List, 2)
	assert.Equal(t, 1, resp.List[0].BookingCount)

	resp, err = f.service.ListOrders(ctx, user, models.OrderStatusPaid, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.List)

	_, err = f.service.ListOrders(ctx, authz.Caller{}, "", 1, 10)
	assert.True(t, errors.IsKind(err, errors.KindUnauthorized))
}
