package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/testutil"
)

const testCallbackToken = "cb-token"

type webhookFixture struct {
	db      *gorm.DB
	redis   *miniredis.Miniredis
	service *WebhookService
	court   *models.Court
}

func setupWebhookService(t *testing.T) *webhookFixture {
	t.Helper()
	db := testutil.NewDB(t)
	c, mr := testutil.NewCache(t)
	paymentRepo := repository.NewPaymentRepository(db)
	engine := status.NewEngine(
		db,
		paymentRepo,
		repository.NewOrderRepository(db),
		repository.NewBookingRepository(db),
		repository.NewStatusHistoryRepository(db),
		authz.NewAuthorizer(),
		nil, nil, nil, nil,
	)
	svc := NewWebhookService(paymentRepo, repository.NewWebhookEventRepository(db), engine, c, nil, nil, testCallbackToken, time.Hour)
	return &webhookFixture{
		db:      db,
		redis:   mr,
		service: svc,
		court:   testutil.SeedCourt(t, db, 100000, "06:00", "23:00"),
	}
}

func (f *webhookFixture) seed(t *testing.T) *testutil.SeededOrder {
	t.Helper()
	return testutil.SeedOrder(t, f.db, 1, time.Now().Add(30*time.Minute), testutil.BookingSpec{
		CourtID: f.court.ID,
		Date:    testDate,
		Slots:   []string{"09:00-10:00"},
		Price:   100000,
	})
}

func (f *webhookFixture) events(t *testing.T, externalID string) []*models.WebhookEvent {
	t.Helper()
	events, err := repository.NewWebhookEventRepository(f.db).ListByExternalID(context.Background(), externalID)
	require.NoError(t, err)
	return events
}

func invoiceCallback(paymentNo, status string, paidAmount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"inv_1","external_id":%q,"status":%q,"amount":%d,"paid_amount":%d,"paid_at":"2026-10-19T10:00:00Z"}`,
		paymentNo, status, paidAmount, paidAmount,
	))
}

func TestHandleCallback_Token(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)
	body := invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000)

	for _, token := range []string{"", "wrong", testCallbackToken + "x"} {
		_, err := f.service.HandleCallback(context.Background(), token, body)
		assert.ErrorIs(t, err, errors.ErrCallbackToken)
	}
	assert.Equal(t, models.PaymentStatusUnpaid, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)
	assert.Empty(t, f.events(t, seeded.Payment.PaymentNo))
}

func TestHandleCallback_NoTokenConfigured(t *testing.T) {
	f := setupWebhookService(t)
	f.service.callbackToken = ""

	_, err := f.service.HandleCallback(context.Background(), "", []byte(`{}`))
	assert.ErrorIs(t, err, errors.ErrCallbackToken)
}

func TestHandleCallback_PaidThenDuplicate(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)
	ctx := context.Background()
	body := invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000)

	res, err := f.service.HandleCallback(ctx, testCallbackToken, body)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultApplied, res.Result)
	assert.True(t, res.Applied)

	payment := testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	require.NotNil(t, payment.PaidAmount)
	assert.Equal(t, int64(100000), *payment.PaidAmount)
	assert.Equal(t, "inv_1", payment.CallbackData["id"])
	assert.Equal(t, models.BookingStatusUpcoming, testutil.Reload[models.Booking](t, f.db, seeded.Bookings[0].ID).Status)
	assert.Equal(t, models.OrderStatusPaid, testutil.Reload[models.Order](t, f.db, seeded.Order.ID).Status)

	res, err = f.service.HandleCallback(ctx, testCallbackToken, body)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultDuplicate, res.Result)

	events := f.events(t, seeded.Payment.PaymentNo)
	require.Len(t, events, 2)
	assert.Equal(t, events[0].EventKey, events[1].EventKey)
}

// 超过有效期仍未支付时，迟到的 PAID 回调按过期处理
func TestHandleCallback_LatePaidOnOverduePayment(t *testing.T) {
	f := setupWebhookService(t)
	seeded := testutil.SeedOrder(t, f.db, 1, time.Now().Add(-time.Minute), testutil.BookingSpec{
		CourtID: f.court.ID,
		Date:    testDate,
		Slots:   []string{"09:00-10:00"},
		Price:   100000,
	})
	ctx := context.Background()

	res, err := f.service.HandleCallback(ctx, testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000))
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultLate, res.Result)
	assert.False(t, res.Applied)

	assert.Equal(t, models.PaymentStatusExpired, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)
	assert.Equal(t, models.BookingStatusCancelled, testutil.Reload[models.Booking](t, f.db, seeded.Bookings[0].ID).Status)
	assert.Equal(t, models.OrderStatusExpired, testutil.Reload[models.Order](t, f.db, seeded.Order.ID).Status)
	assert.Zero(t, testutil.ActiveSlotCount(t, f.db, f.court.ID, testDate))

	events := f.events(t, seeded.Payment.PaymentNo)
	require.Len(t, events, 1)
	assert.Equal(t, models.WebhookResultLate, events[0].Result)
}

// 过期清理已先执行时结果相同，与扫描时机无关
func TestHandleCallback_LatePaidAfterSweep(t *testing.T) {
	f := setupWebhookService(t)
	seeded := testutil.SeedOrder(t, f.db, 1, time.Now().Add(-time.Minute), testutil.BookingSpec{
		CourtID: f.court.ID,
		Date:    testDate,
		Slots:   []string{"09:00-10:00"},
		Price:   100000,
	})
	ctx := context.Background()

	_, err := f.service.engine.ApplyPaymentStatus(ctx, seeded.Payment.ID, models.PaymentStatusExpired, status.PaymentEvent{Trigger: status.TriggerExpiry})
	require.NoError(t, err)

	res, err := f.service.HandleCallback(ctx, testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.PaymentStatusExpired, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)
}

func TestListEvents(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)
	ctx := context.Background()

	list, err := f.service.ListEvents(ctx, seeded.Payment.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.service.HandleCallback(ctx, testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000))
	require.NoError(t, err)

	list, err = f.service.ListEvents(ctx, seeded.Payment.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.WebhookResultApplied, list[0].Result)

	_, err = f.service.ListEvents(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrPaymentNotFound)
}

func TestHandleCallback_ReplayWithoutCacheIsNoop(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)
	ctx := context.Background()
	body := invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000)

	_, err := f.service.HandleCallback(ctx, testCallbackToken, body)
	require.NoError(t, err)

	f.redis.FlushAll()
	res, err := f.service.HandleCallback(ctx, testCallbackToken, body)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultNoop, res.Result)
	assert.False(t, res.Applied)
}

func TestHandleCallback_ExpiredAfterPaidIsNoop(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)
	ctx := context.Background()

	_, err := f.service.HandleCallback(ctx, testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "PAID", 100000))
	require.NoError(t, err)

	res, err := f.service.HandleCallback(ctx, testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "EXPIRED", 0))
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultNoop, res.Result)
	assert.Equal(t, models.PaymentStatusPaid, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)
	assert.Equal(t, int64(1), testutil.ActiveSlotCount(t, f.db, f.court.ID, testDate))
}

func TestHandleCallback_Expired(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)

	body := []byte(fmt.Sprintf(`{"id":"inv_1","external_id":%q,"status":"EXPIRED"}`, seeded.Payment.PaymentNo))
	res, err := f.service.HandleCallback(context.Background(), testCallbackToken, body)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultApplied, res.Result)
	assert.Equal(t, models.PaymentStatusExpired, res.MappedStatus)
	assert.Equal(t, models.OrderStatusExpired, testutil.Reload[models.Order](t, f.db, seeded.Order.ID).Status)
	assert.Zero(t, testutil.ActiveSlotCount(t, f.db, f.court.ID, testDate))
}

func TestHandleCallback_AmountMismatch(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)

	res, err := f.service.HandleCallback(context.Background(), testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "PAID", 90000))
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultAmountMismatch, res.Result)
	assert.Equal(t, models.PaymentStatusUnpaid, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)

	events := f.events(t, seeded.Payment.PaymentNo)
	require.Len(t, events, 1)
	assert.Equal(t, models.WebhookResultAmountMismatch, events[0].Result)
}

func TestHandleCallback_UnknownPaymentAcknowledged(t *testing.T) {
	f := setupWebhookService(t)

	res, err := f.service.HandleCallback(context.Background(), testCallbackToken, invoiceCallback("PAY-UNKNOWN", "PAID", 100000))
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultNotFound, res.Result)
	assert.Len(t, f.events(t, "PAY-UNKNOWN"), 1)
}

func TestHandleCallback_IgnoredPayloads(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)
	ctx := context.Background()

	res, err := f.service.HandleCallback(ctx, testCallbackToken, []byte(`not json`))
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultIgnored, res.Result)

	res, err = f.service.HandleCallback(ctx, testCallbackToken, invoiceCallback(seeded.Payment.PaymentNo, "PENDING", 0))
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultIgnored, res.Result)
	assert.Equal(t, models.PaymentStatusUnpaid, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)
}

func TestHandleCallback_EventEnvelope(t *testing.T) {
	f := setupWebhookService(t)
	seeded := f.seed(t)

	body := []byte(fmt.Sprintf(
		`{"event":"payment.succeeded","business_id":"b1","data":{"id":"py_1","reference_id":%q,"status":"SUCCEEDED","amount":100000}}`,
		seeded.Payment.PaymentNo,
	))
	res, err := f.service.HandleCallback(context.Background(), testCallbackToken, body)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookResultApplied, res.Result)
	assert.Equal(t, models.PaymentStatusPaid, testutil.Reload[models.Payment](t, f.db, seeded.Payment.ID).Status)
}
