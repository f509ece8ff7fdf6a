package court

import (
	"time"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// OpenRange 营业区间（分钟，左闭右开）
type OpenRange struct {
	Open  int
	Close int
}

// DaySchedule 场地某日的营业安排
type DaySchedule struct {
	Date   string
	Closed bool
	Ranges []OpenRange
}

// ScheduleFor 计算场地某日的营业安排
// 可变营业时间的场地优先使用指定日期配置，没有配置时回退到每周营业时间
func ScheduleFor(court *models.Court, hours []*models.CourtOperatingHour, override *models.CourtScheduleOverride, date time.Time) DaySchedule {
	schedule := DaySchedule{Date: date.Format(DateLayout)}

	if court.UseVariableHours && override != nil {
		if override.IsClosed {
			schedule.Closed = true
			return schedule
		}
		if r, ok := toRange(override.OpenHour, override.CloseHour); ok {
			schedule.Ranges = append(schedule.Ranges, r)
		}
		schedule.Closed = len(schedule.Ranges) == 0
		return schedule
	}

	weekday := int(date.Weekday())
	for _, h := range hours {
		if h.DayOfWeek != weekday {
			continue
		}
		if h.IsClosed {
			return DaySchedule{Date: schedule.Date, Closed: true}
		}
		if r, ok := toRange(h.OpenHour, h.CloseHour); ok {
			schedule.Ranges = append(schedule.Ranges, r)
		}
	}
	schedule.Closed = len(schedule.Ranges) == 0
	return schedule
}

func toRange(openHour, closeHour string) (OpenRange, bool) {
	o, err := parseClock(openHour, false)
	if err != nil {
		return OpenRange{}, false
	}
	c, err := parseClock(closeHour, true)
	if err != nil || c <= o {
		return OpenRange{}, false
	}
	return OpenRange{Open: o, Close: c}, true
}

// Slots 按小时枚举营业时段，末尾不足一小时的部分不可预订
func (d DaySchedule) Slots() []TimeSlot {
	if d.Closed {
		return nil
	}
	var slots []TimeSlot
	for _, r := range d.Ranges {
		for start := r.Open; start+slotMinutes <= r.Close; start += slotMinutes {
			slots = append(slots, newSlot(start))
		}
	}
	return SortSlots(slots)
}

// ResolveAvailability 从营业时段中去掉与占用时段相交的部分
func ResolveAvailability(schedule DaySchedule, excluded []TimeSlot) []TimeSlot {
	available := make([]TimeSlot, 0)
	for _, slot := range schedule.Slots() {
		free := true
		for _, ex := range excluded {
			if slot.Overlaps(ex) {
				free = false
				break
			}
		}
		if free {
			available = append(available, slot)
		}
	}
	return available
}

// OccupiesSlots 预订是否占用时段：设置了占用标记，或未取消
func OccupiesSlots(b *models.Booking) bool {
	return b.IsBlocking() || b.Status != models.BookingStatusCancelled
}

// ExcludedSlots 汇总占用中的预订时段
// skipBookingID 非 0 时忽略该预订自身（重新激活场景）
func ExcludedSlots(bookings []*models.Booking, skipBookingID int64) []TimeSlot {
	var excluded []TimeSlot
	for _, b := range bookings {
		if b.ID == skipBookingID || !OccupiesSlots(b) {
			continue
		}
		for _, s := range b.Slots {
			excluded = append(excluded, TimeSlot{OpenHour: s.StartTime, CloseHour: s.EndTime})
		}
	}
	return excluded
}

// FilterStarted 去掉已开始的时段
func FilterStarted(slots []TimeSlot, date time.Time, now time.Time, loc *time.Location) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if SlotStartTime(date, s, loc).After(now) {
			out = append(out, s)
		}
	}
	return out
}
