package court

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
)

const availabilityCacheName = "availability"

// availabilityVersionTTL 版本键保留时间，需远大于快照 TTL
const availabilityVersionTTL = 24 * time.Hour

// CourtService 场地可用性与价格服务
type CourtService struct {
	courtRepo   *repository.CourtRepository
	ruleRepo    *repository.PriceRuleRepository
	bookingRepo *repository.BookingRepository
	cache       *cache.Cache
	metrics     *metrics.Metrics
	logger      *zap.Logger

	location *time.Location
	cacheTTL time.Duration
	now      func() time.Time
}

// Options 服务选项
type Options struct {
	Location *time.Location
	CacheTTL time.Duration
}

// NewCourtService 创建场地服务
func NewCourtService(
	courtRepo *repository.CourtRepository,
	ruleRepo *repository.PriceRuleRepository,
	bookingRepo *repository.BookingRepository,
	c *cache.Cache,
	m *metrics.Metrics,
	log *zap.Logger,
	opts Options,
) *CourtService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CourtService{
		courtRepo:   courtRepo,
		ruleRepo:    ruleRepo,
		bookingRepo: bookingRepo,
		cache:       c,
		metrics:     m,
		logger:      log.Named("court"),
		location:    opts.Location,
		cacheTTL:    opts.CacheTTL,
		now:         time.Now,
	}
}

// Location 营业时区
func (s *CourtService) Location() *time.Location {
	return s.location
}

// Now 当前时间（营业时区）
func (s *CourtService) Now() time.Time {
	return s.now().In(s.location)
}

// AvailabilityInfo 可用时段
type AvailabilityInfo struct {
	CourtID int64    `json:"court_id"`
	Date    string   `json:"date"`
	Closed  bool     `json:"closed"`
	Slots   []string `json:"slots"`
}

// PriceInfo 时段价格
type PriceInfo struct {
	CourtID      int64        `json:"court_id"`
	Date         string       `json:"date"`
	DefaultPrice int64        `json:"default_price"`
	Slots        []PricedSlot `json:"slots"`
}

// cachedAvailability 缓存内容，不含已开始时段的过滤
type cachedAvailability struct {
	Closed bool     `json:"closed"`
	Slots  []string `json:"slots"`
}

// DaySnapshot 场地某日的营业、占用与价格规则快照
type DaySnapshot struct {
	Court     *models.Court
	Date      time.Time
	Schedule  DaySchedule
	Excluded  []TimeSlot
	Rules     []*models.DynamicPriceRule
	Available []TimeSlot
}

// Unavailable 返回请求中不可预订的时段
func (d *DaySnapshot) Unavailable(requested []TimeSlot) []TimeSlot {
	free := make(map[int]struct{}, len(d.Available))
	for _, s := range d.Available {
		free[s.Start()] = struct{}{}
	}
	var taken []TimeSlot
	for _, s := range requested {
		if _, ok := free[s.Start()]; !ok {
			taken = append(taken, s)
		}
	}
	return taken
}

// Price 计算时段价格及合计
func (d *DaySnapshot) Price(slots []TimeSlot) ([]PricedSlot, int64) {
	return PriceSlots(slots, d.Date, d.Court.DefaultPrice, d.Rules)
}

// GetCourt 获取场地
func (s *CourtService) GetCourt(ctx context.Context, courtID int64) (*models.Court, error) {
	court, err := s.courtRepo.GetByID(ctx, courtID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrCourtNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return court, nil
}

// Snapshot 加载场地某日快照
// tx 不为 nil 时在事务内读取，下单流程必须传入事务
func (s *CourtService) Snapshot(ctx context.Context, tx *gorm.DB, court *models.Court, date time.Time, skipBookingID int64) (*DaySnapshot, error) {
	courtRepo, ruleRepo, bookingRepo := s.courtRepo, s.ruleRepo, s.bookingRepo
	if tx != nil {
		courtRepo = courtRepo.WithTx(tx)
		ruleRepo = ruleRepo.WithTx(tx)
		bookingRepo = bookingRepo.WithTx(tx)
	}

	dateStr := date.Format(DateLayout)
	hours, err := courtRepo.ListOperatingHours(ctx, court.ID, int(date.Weekday()))
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	var override *models.CourtScheduleOverride
	if court.UseVariableHours {
		override, err = courtRepo.GetScheduleOverride(ctx, court.ID, dateStr)
		if err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}
	bookings, err := bookingRepo.ListByCourtDate(ctx, court.ID, dateStr)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	rules, err := ruleRepo.ListActiveForDate(ctx, court.ID, dateStr, int(date.Weekday()))
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	schedule := ScheduleFor(court, hours, override, date)
	excluded := ExcludedSlots(bookings, skipBookingID)
	return &DaySnapshot{
		Court:     court,
		Date:      date,
		Schedule:  schedule,
		Excluded:  excluded,
		Rules:     rules,
		Available: ResolveAvailability(schedule, excluded),
	}, nil
}

// GetAvailability 查询可预订时段，已开始的时段不返回
func (s *CourtService) GetAvailability(ctx context.Context, courtID int64, dateStr string) (*AvailabilityInfo, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "court.GetAvailability", tracing.WithCourtID(courtID))
	defer span.End()

	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, errors.ErrDateInvalid
	}
	court, err := s.GetCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}

	info := &AvailabilityInfo{CourtID: courtID, Date: dateStr, Slots: []string{}}
	if !court.IsActive() {
		info.Closed = true
		return info, nil
	}

	// 版本在读库之前取得，重建期间发生的失效会让本次写入落在旧版本上
	version, verErr := s.cache.Version(ctx, availabilityVersionKey(courtID, dateStr))
	if verErr != nil {
		s.logger.Warn("读取可用时段缓存版本失败", logger.CourtID(courtID), zap.Error(verErr))
	}
	key := availabilityKey(courtID, dateStr, version)

	var slots []TimeSlot
	var cached cachedAvailability
	err = cache.ErrMiss
	if verErr == nil {
		err = s.cache.Get(ctx, key, &cached)
	}
	switch {
	case err == nil:
		s.metrics.RecordCacheHit(availabilityCacheName)
		info.Closed = cached.Closed
		for _, str := range cached.Slots {
			if slot, err := ParseTimeSlot(str); err == nil {
				slots = append(slots, slot)
			}
		}
	default:
		if !stderrors.Is(err, cache.ErrMiss) {
			s.logger.Warn("读取可用时段缓存失败", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheMiss(availabilityCacheName)

		snapshot, err := s.Snapshot(ctx, nil, court, date, 0)
		if err != nil {
			return nil, err
		}
		slots = snapshot.Available
		info.Closed = snapshot.Schedule.Closed
		if s.cacheTTL > 0 && verErr == nil {
			value := cachedAvailability{Closed: info.Closed, Slots: SlotStrings(slots)}
			if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
				s.logger.Warn("写入可用时段缓存失败", zap.String("key", key), zap.Error(err))
			}
		}
	}

	info.Slots = SlotStrings(FilterStarted(slots, date, s.Now(), s.location))
	return info, nil
}

// GetPrices 查询某日全部营业时段的价格
func (s *CourtService) GetPrices(ctx context.Context, courtID int64, dateStr string) (*PriceInfo, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "court.GetPrices", tracing.WithCourtID(courtID))
	defer span.End()

	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, errors.ErrDateInvalid
	}
	court, err := s.GetCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.Snapshot(ctx, nil, court, date, 0)
	if err != nil {
		return nil, err
	}
	priced, _ := snapshot.Price(snapshot.Schedule.Slots())
	return &PriceInfo{
		CourtID:      courtID,
		Date:         dateStr,
		DefaultPrice: court.DefaultPrice,
		Slots:        priced,
	}, nil
}

// InvalidateAvailability 递增日期版本使已有快照失效，旧版本快照随 TTL 过期
func (s *CourtService) InvalidateAvailability(ctx context.Context, courtID int64, dates ...string) {
	for _, d := range dates {
		if err := s.cache.Bump(ctx, availabilityVersionKey(courtID, d), availabilityVersionTTL); err != nil {
			s.logger.Warn("清除可用时段缓存失败", logger.CourtID(courtID), zap.String("date", d), zap.Error(err))
		}
	}
}

func availabilityKey(courtID int64, date string, version int64) string {
	return cache.BuildKey(cache.KeyPrefixAvailability, strconv.FormatInt(courtID, 10), date, "v"+strconv.FormatInt(version, 10))
}

func availabilityVersionKey(courtID int64, date string) string {
	return cache.BuildKey(cache.KeyPrefixAvailability, "ver", strconv.FormatInt(courtID, 10), date)
}
