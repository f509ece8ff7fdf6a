// Package court 提供场地时段、可用性与价格计算
package court

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout 预订日期格式
const DateLayout = "2006-01-02"

const (
	minutesPerDay = 24 * 60
	slotMinutes   = 60
)

// TimeSlot 一小时的可预订时段，时间为 HH:MM
type TimeSlot struct {
	OpenHour  string `json:"open_hour"`
	CloseHour string `json:"close_hour"`
}

// String 文本形式，如 09:00-10:00
func (s TimeSlot) String() string {
	return s.OpenHour + "-" + s.CloseHour
}

// Start 开始分钟数
func (s TimeSlot) Start() int {
	m, _ := parseClock(s.OpenHour, false)
	return m
}

// End 结束分钟数，00:00 视为午夜 1440
func (s TimeSlot) End() int {
	m, _ := parseClock(s.CloseHour, true)
	return m
}

// Overlaps 左闭右开区间相交
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return overlaps(s.Start(), s.End(), other.Start(), other.End())
}

func overlaps(start, end, otherStart, otherEnd int) bool {
	return start < otherEnd && end > otherStart
}

// ParseTimeSlot 解析 HH:MM-HH:MM，要求恰好一小时
func ParseTimeSlot(s string) (TimeSlot, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return TimeSlot{}, fmt.Errorf("invalid slot %q: expected HH:MM-HH:MM", s)
	}
	start, err := parseClock(parts[0], false)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("invalid slot %q: %w", s, err)
	}
	end, err := parseClock(parts[1], true)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("invalid slot %q: %w", s, err)
	}
	if end-start != slotMinutes {
		return TimeSlot{}, fmt.Errorf("invalid slot %q: must span exactly one hour", s)
	}
	return newSlot(start), nil
}

// newSlot 从开始分钟数构造一小时时段
func newSlot(start int) TimeSlot {
	return TimeSlot{
		OpenHour:  formatClock(start),
		CloseHour: formatClock(start + slotMinutes),
	}
}

// parseClock 解析 HH:MM 为分钟数
// asEnd 为 true 时 00:00 与 24:00 表示当天结束
func parseClock(s string, asEnd bool) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	total := h*60 + m
	if asEnd && total == 0 {
		return minutesPerDay, nil
	}
	if !asEnd && total == minutesPerDay {
		return 0, fmt.Errorf("invalid start time %q", s)
	}
	return total, nil
}

// formatClock 分钟数格式化为 HH:MM，午夜写作 00:00
func formatClock(minutes int) string {
	minutes %= minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SortSlots 按开始时间排序并去重
func SortSlots(slots []TimeSlot) []TimeSlot {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start() < slots[j].Start() })
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if n := len(out); n > 0 && out[n-1].Start() == s.Start() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// SlotStrings 转为文本列表
func SlotStrings(slots []TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// SlotStartTime 时段在营业时区的开始时刻
func SlotStartTime(date time.Time, slot TimeSlot, loc *time.Location) time.Time {
	start := slot.Start()
	return time.Date(date.Year(), date.Month(), date.Day(), start/60, start%60, 0, 0, loc)
}
