// Package order 提供下单与订单查询服务
package order

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/database"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/utils"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/events"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/court"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/payment"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
)

const defaultMaxBookingsPerOrder = 10

// InvoiceOpener 开单能力，由支付服务提供
type InvoiceOpener interface {
	OpenInvoice(ctx context.Context, p *models.Payment, description string) (*models.Payment, error)
	Info(p *models.Payment) *payment.PaymentInfo
}

// OrderService 订单服务
type OrderService struct {
	db          *gorm.DB
	courtRepo   *repository.CourtRepository
	orderRepo   *repository.OrderRepository
	bookingRepo *repository.BookingRepository
	paymentRepo *repository.PaymentRepository
	historyRepo *repository.StatusHistoryRepository
	courts      *court.CourtService
	invoices    InvoiceOpener
	authorizer  *authz.Authorizer
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger

	invoiceTTL  time.Duration
	maxBookings int
}

// Options 订单服务选项
type Options struct {
	InvoiceTTL          time.Duration
	MaxBookingsPerOrder int
}

// NewOrderService 创建订单服务
func NewOrderService(
	db *gorm.DB,
	courtRepo *repository.CourtRepository,
	orderRepo *repository.OrderRepository,
	bookingRepo *repository.BookingRepository,
	paymentRepo *repository.PaymentRepository,
	historyRepo *repository.StatusHistoryRepository,
	courts *court.CourtService,
	invoices InvoiceOpener,
	authorizer *authz.Authorizer,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
	opts Options,
) *OrderService {
	if opts.InvoiceTTL <= 0 {
		opts.InvoiceTTL = 30 * time.Minute
	}
	if opts.MaxBookingsPerOrder <= 0 {
		opts.MaxBookingsPerOrder = defaultMaxBookingsPerOrder
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		db:          db,
		courtRepo:   courtRepo,
		orderRepo:   orderRepo,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		historyRepo: historyRepo,
		courts:      courts,
		invoices:    invoices,
		authorizer:  authorizer,
		publisher:   publisher,
		metrics:     m,
		logger:      log.Named("order"),
		invoiceTTL:  opts.InvoiceTTL,
		maxBookings: opts.MaxBookingsPerOrder,
	}
}

// plannedBooking 校验后的预订请求
type plannedBooking struct {
	courtID int64
	dateStr string
	date    time.Time
	slots   []court.TimeSlot
	price   *int64
}

// CreateOrder 创建订单
// 同一事务内锁定场地、校验占用、计价并写入预订、订单和支付；提交后在网关开单。
// 开单失败时订单已提交，返回订单信息和 ErrGatewayUnavailable。
func (s *OrderService) CreateOrder(ctx context.Context, caller authz.Caller, req *CreateOrderRequest) (*OrderInfo, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "order.CreateOrder", tracing.WithUserID(caller.UserID))
	defer span.End()

	userID, plans, err := s.validate(caller, req)
	if err != nil {
		s.metrics.RecordOrder("invalid")
		return nil, err
	}
	channel := req.ChannelName
	if channel == "" {
		channel = models.PaymentChannelXendit
	}

	var (
		order    *models.Order
		bookings []*models.Booking
		pay      *models.Payment
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courtRepo := s.courtRepo.WithTx(tx)

		locked := make(map[int64]*models.Court)
		for _, id := range lockOrder(plans) {
			c, err := courtRepo.GetForUpdate(ctx, id)
			if err != nil {
				if stderrors.Is(err, gorm.ErrRecordNotFound) {
					return errors.ErrCourtNotFound.WithDetails(map[string]interface{}{"court_id": id})
				}
				return errors.ErrDatabaseError.WithError(err)
			}
			if !c.IsActive() {
				return errors.ErrCourtDisabled.WithDetails(map[string]interface{}{"court_id": id})
			}
			locked[id] = c
		}

		bookings = make([]*models.Booking, 0, len(plans))
		var total int64
		for _, p := range plans {
			snap, err := s.courts.Snapshot(ctx, tx, locked[p.courtID], p.date, 0)
			if err != nil {
				return err
			}
			if taken := snap.Unavailable(p.slots); len(taken) > 0 {
				return slotConflict(p.courtID, p.dateStr, taken)
			}
			priced, subtotal := snap.Price(p.slots)
			if p.price != nil && *p.price != subtotal {
				return errors.ErrPriceMismatch.WithDetails(map[string]interface{}{
					"court_id": p.courtID,
					"date":     p.dateStr,
					"quoted":   *p.price,
					"price":    subtotal,
				})
			}
			bookings = append(bookings, newBooking(userID, p, priced, subtotal))
			total += subtotal
		}

		order = &models.Order{
			OrderNo:     utils.GenerateNo("ORD"),
			UserID:      userID,
			Status:      models.OrderStatusPending,
			TotalAmount: total,
		}
		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		bookingRepo := s.bookingRepo.WithTx(tx)
		for _, b := range bookings {
			b.OrderID = &order.ID
			if err := bookingRepo.Create(ctx, b); err != nil {
				return err
			}
		}

		expiredAt := s.courts.Now().Add(s.invoiceTTL)
		pay = &models.Payment{
			PaymentNo:   utils.GenerateNo("PAY"),
			OrderID:     order.ID,
			UserID:      userID,
			Amount:      total,
			ChannelName: channel,
			Status:      models.PaymentStatusUnpaid,
			ExpiredAt:   &expiredAt,
		}
		if err := s.paymentRepo.WithTx(tx).Create(ctx, pay); err != nil {
			return err
		}
		return s.historyRepo.WithTx(tx).CreateBatch(ctx, creationHistories(caller, order, bookings, pay))
	})
	if err != nil {
		return nil, s.createError(ctx, err, plans)
	}

	s.metrics.RecordOrder("created")
	s.afterCreate(ctx, order, bookings)
	s.logger.Info("订单已创建",
		logger.OrderNo(order.OrderNo),
		logger.PaymentNo(pay.PaymentNo),
		logger.UserID(userID),
		zap.Int64("amount", order.TotalAmount),
		zap.Int("bookings", len(bookings)),
	)

	opened, invoiceErr := s.invoices.OpenInvoice(ctx, pay, payment.InvoiceDescription(order))
	if invoiceErr == nil {
		pay = opened
	} else {
		s.logger.Warn("订单已创建但开单失败", logger.OrderNo(order.OrderNo), zap.Error(invoiceErr))
		if latest, err := s.paymentRepo.GetByID(ctx, pay.ID); err == nil {
			pay = latest
		}
	}

	info := s.orderInfo(order, bookings, pay)
	if invoiceErr != nil {
		return info, invoiceErr
	}
	return info, nil
}

// createError 将事务错误转换为业务错误
func (s *OrderService) createError(ctx context.Context, err error, plans []plannedBooking) error {
	tracing.SetError(ctx, err)
	if database.IsUniqueViolation(err) {
		// 并发下单的胜者已提交，唯一索引兜底
		s.metrics.RecordOrder("conflict")
		s.metrics.RecordSlotConflict()
		return errors.ErrSlotConflict.WithDetails(s.conflictDetails(ctx, plans))
	}
	if errors.IsKind(err, errors.KindSlotConflict) {
		s.metrics.RecordOrder("conflict")
		s.metrics.RecordSlotConflict()
		return err
	}
	if errors.IsAppError(err) {
		s.metrics.RecordOrder("rejected")
		return err
	}
	s.metrics.RecordOrder("error")
	s.logger.Error("创建订单失败", zap.Error(err))
	return errors.ErrDatabaseError.WithError(err)
}

// conflictDetails 事务回滚后重新读取占用，只报告与请求相交的时段
// 读取失败或未找到相交时段时报告全部请求时段
func (s *OrderService) conflictDetails(ctx context.Context, plans []plannedBooking) []map[string]interface{} {
	details := make([]map[string]interface{}, 0, len(plans))
	for _, p := range plans {
		if taken := s.takenSlots(ctx, p); len(taken) > 0 {
			details = append(details, map[string]interface{}{
				"court_id": p.courtID,
				"date":     p.dateStr,
				"slots":    court.SlotStrings(taken),
			})
		}
	}
	if len(details) > 0 {
		return details
	}
	for _, p := range plans {
		details = append(details, map[string]interface{}{
			"court_id": p.courtID,
			"date":     p.dateStr,
			"slots":    court.SlotStrings(p.slots),
		})
	}
	return details
}

func (s *OrderService) takenSlots(ctx context.Context, p plannedBooking) []court.TimeSlot {
	c, err := s.courtRepo.GetByID(ctx, p.courtID)
	if err != nil {
		s.logger.Warn("读取冲突场地失败", logger.CourtID(p.courtID), zap.Error(err))
		return nil
	}
	snap, err := s.courts.Snapshot(ctx, nil, c, p.date, 0)
	if err != nil {
		s.logger.Warn("读取冲突时段失败", logger.CourtID(p.courtID), zap.Error(err))
		return nil
	}
	return snap.Unavailable(p.slots)
}

// afterCreate 清除可用性缓存并发布预订创建事件
func (s *OrderService) afterCreate(ctx context.Context, order *models.Order, bookings []*models.Booking) {
	dates := make(map[int64][]string)
	evs := make([]events.Event, 0, len(bookings)+1)
	now := time.Now()
	evs = append(evs, events.Event{
		EntityType: models.StatusEntityOrder,
		EntityID:   order.ID,
		ToStatus:   order.Status,
		Trigger:    status.TriggerCreate,
		OccurredAt: now,
	})
	for _, b := range bookings {
		dates[b.CourtID] = append(dates[b.CourtID], b.BookingDate)
		evs = append(evs, events.Event{
			EntityType:  models.StatusEntityBooking,
			EntityID:    b.ID,
			ToStatus:    b.Status,
			Trigger:     status.TriggerCreate,
			OrderID:     b.OrderID,
			CourtID:     b.CourtID,
			BookingDate: b.BookingDate,
			OccurredAt:  now,
		})
	}
	for courtID, ds := range dates {
		s.courts.InvalidateAvailability(ctx, courtID, utils.Unique(ds)...)
	}
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		s.logger.Warn("发布订单创建事件失败", logger.OrderNo(order.OrderNo), zap.Error(err))
	}
}

// GetOrder 查询订单详情，本人或员工可见
func (s *OrderService) GetOrder(ctx context.Context, caller authz.Caller, orderID int64) (*OrderInfo, error) {
	order, err := s.visibleOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	bookings := make([]*models.Booking, 0, len(order.Bookings))
	for i := range order.Bookings {
		bookings = append(bookings, &order.Bookings[i])
	}
	return s.orderInfo(order, bookings, order.Payment), nil
}

// GetOrderHistory 订单及其预订、支付的状态变更记录，按发生顺序排列
func (s *OrderService) GetOrderHistory(ctx context.Context, caller authz.Caller, orderID int64) ([]*models.StatusHistory, error) {
	order, err := s.visibleOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	type entity struct {
		kind string
		id   int64
	}
	entities := []entity{{models.StatusEntityOrder, order.ID}}
	for _, b := range order.Bookings {
		entities = append(entities, entity{models.StatusEntityBooking, b.ID})
	}
	if order.Payment != nil {
		entities = append(entities, entity{models.StatusEntityPayment, order.Payment.ID})
	}

	var all []*models.StatusHistory
	for _, e := range entities {
		list, err := s.historyRepo.ListByEntity(ctx, e.kind, e.id)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		all = append(all, list...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (s *OrderService) visibleOrder(ctx context.Context, caller authz.Caller, orderID int64) (*models.Order, error) {
	if caller.Role == "" {
		return nil, errors.ErrUnauthorized
	}
	order, err := s.orderRepo.GetByIDWithDetails(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if order.UserID != caller.UserID {
		if err := s.authorizer.Authorize(caller, authz.CapOrderViewAny); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ListOrders 查询调用方本人的订单
func (s *OrderService) ListOrders(ctx context.Context, caller authz.Caller, statusFilter string, page, pageSize int) (*OrderListResponse, error) {
	if caller.Role == "" || caller.UserID == 0 {
		return nil, errors.ErrUnauthorized
	}
	pagination := &utils.Pagination{Page: page, PageSize: pageSize}
	pagination.Normalize()

	orders, total, err := s.orderRepo.List(ctx, caller.UserID, statusFilter, pagination.GetOffset(), pagination.GetLimit())
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	pagination.Total = total

	list := make([]OrderListItem, 0, len(orders))
	for _, o := range orders {
		list = append(list, newOrderListItem(o))
	}
	return &OrderListResponse{List: list, Pagination: pagination}, nil
}

// validate 校验请求，返回下单用户和按请求顺序排列的预订
func (s *OrderService) validate(caller authz.Caller, req *CreateOrderRequest) (int64, []plannedBooking, error) {
	if err := s.authorizer.Authorize(caller, authz.CapOrderCreate); err != nil {
		return 0, nil, err
	}
	if req == nil {
		return 0, nil, errors.ErrInvalidParams
	}
	userID := req.UserID
	if userID == 0 {
		userID = caller.UserID
	}
	if userID <= 0 {
		return 0, nil, errors.ErrInvalidParams.WithMessage("缺少下单用户")
	}
	if userID != caller.UserID {
		if err := s.authorizer.Authorize(caller, authz.CapOrderCreateForUser); err != nil {
			return 0, nil, err
		}
	}
	if len(req.Bookings) == 0 {
		return 0, nil, errors.ErrInvalidParams.WithMessage("至少需要一个预订")
	}
	if len(req.Bookings) > s.maxBookings {
		return 0, nil, errors.ErrInvalidParams.WithMessage("单笔订单最多 " + strconv.Itoa(s.maxBookings) + " 个预订")
	}

	now := s.courts.Now()
	loc := s.courts.Location()
	seen := make(map[string][]court.TimeSlot)
	plans := make([]plannedBooking, 0, len(req.Bookings))
	for _, b := range req.Bookings {
		if b.CourtID <= 0 {
			return 0, nil, errors.ErrInvalidParams.WithMessage("无效的场地")
		}
		date, err := court.ParseDate(b.Date)
		if err != nil {
			return 0, nil, errors.ErrDateInvalid.WithDetails(map[string]interface{}{"date": b.Date})
		}
		if len(b.Slots) == 0 {
			return 0, nil, errors.ErrTimeSlotInvalid.WithMessage("至少需要一个时段")
		}

		key := strconv.FormatInt(b.CourtID, 10) + "|" + b.Date
		slots := make([]court.TimeSlot, 0, len(b.Slots))
		for _, raw := range b.Slots {
			slot, err := court.ParseTimeSlot(raw)
			if err != nil {
				return 0, nil, errors.ErrTimeSlotInvalid.WithDetails(map[string]interface{}{"slot": raw})
			}
			for _, other := range seen[key] {
				if slot.Overlaps(other) {
					return 0, nil, errors.ErrTimeSlotInvalid.
						WithMessage("时段重复或重叠").
						WithDetails(map[string]interface{}{"court_id": b.CourtID, "date": b.Date, "slot": raw})
				}
			}
			if !court.SlotStartTime(date, slot, loc).After(now) {
				return 0, nil, errors.ErrSlotStarted.
					WithDetails(map[string]interface{}{"date": b.Date, "slot": raw})
			}
			seen[key] = append(seen[key], slot)
			slots = append(slots, slot)
		}

		plans = append(plans, plannedBooking{
			courtID: b.CourtID,
			dateStr: b.Date,
			date:    date,
			slots:   court.SortSlots(slots),
			price:   b.Price,
		})
	}
	return userID, plans, nil
}

func (s *OrderService) orderInfo(o *models.Order, bookings []*models.Booking, p *models.Payment) *OrderInfo {
	info := &OrderInfo{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		UserID:          o.UserID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		TotalAmountText: utils.FormatRupiah(o.TotalAmount),
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
		Bookings:        make([]BookingInfo, 0, len(bookings)),
	}
	for _, b := range bookings {
		info.Bookings = append(info.Bookings, newBookingInfo(b))
	}
	if p != nil {
		info.Payment = s.invoices.Info(p)
	}
	return info
}

// lockOrder 按场地 ID 升序加锁，避免多场地订单互相等待
func lockOrder(plans []plannedBooking) []int64 {
	ids := make([]int64, 0, len(plans))
	seen := make(map[int64]struct{})
	for _, p := range plans {
		if _, ok := seen[p.courtID]; ok {
			continue
		}
		seen[p.courtID] = struct{}{}
		ids = append(ids, p.courtID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func newBooking(userID int64, p plannedBooking, priced []court.PricedSlot, total int64) *models.Booking {
	b := &models.Booking{
		BookingNo:   utils.GenerateNo("BK"),
		UserID:      userID,
		CourtID:     p.courtID,
		BookingDate: p.dateStr,
		Status:      models.BookingStatusPending,
		TotalPrice:  total,
		Slots:       make([]models.BookingSlot, 0, len(p.slots)),
	}
	for i, slot := range p.slots {
		b.Slots = append(b.Slots, models.BookingSlot{
			CourtID:     p.courtID,
			BookingDate: p.dateStr,
			StartTime:   slot.OpenHour,
			EndTime:     slot.CloseHour,
			Price:       priced[i].Price,
			Active:      true,
		})
	}
	return b
}

func slotConflict(courtID int64, date string, taken []court.TimeSlot) error {
	return errors.ErrSlotConflict.WithDetails(map[string]interface{}{
		"court_id": courtID,
		"date":     date,
		"slots":    court.SlotStrings(taken),
	})
}

func creationHistories(caller authz.Caller, o *models.Order, bookings []*models.Booking, p *models.Payment) []*models.StatusHistory {
	var actor *int64
	if caller.UserID != 0 {
		id := caller.UserID
		actor = &id
	}
	histories := make([]*models.StatusHistory, 0, len(bookings)+2)
	add := func(entity string, id int64, to string) {
		histories = append(histories, &models.StatusHistory{
			EntityType: entity,
			EntityID:   id,
			ToStatus:   to,
			Trigger:    status.TriggerCreate,
			ActorID:    actor,
		})
	}
	add(models.StatusEntityOrder, o.ID, o.Status)
	for _, b := range bookings {
		add(models.StatusEntityBooking, b.ID, b.Status)
	}
	add(models.StatusEntityPayment, p.ID, p.Status)
	return histories
}
