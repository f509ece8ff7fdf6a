package court

import (
	"time"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// PricedSlot 带价格的时段
type PricedSlot struct {
	Slot  string `json:"slot"`
	Price int64  `json:"price"`
	// RuleID 命中的规则，为空表示使用默认价
	RuleID *int64 `json:"rule_id,omitempty"`
}

// ResolvePrice 计算单个时段价格
func ResolvePrice(slot TimeSlot, date time.Time, defaultPrice int64, rules []*models.DynamicPriceRule) int64 {
	if rule := matchRule(slot, date, rules); rule != nil {
		return rule.Price
	}
	return defaultPrice
}

// PriceSlots 计算多个时段价格及合计
func PriceSlots(slots []TimeSlot, date time.Time, defaultPrice int64, rules []*models.DynamicPriceRule) ([]PricedSlot, int64) {
	priced := make([]PricedSlot, 0, len(slots))
	var total int64
	for _, s := range slots {
		p := PricedSlot{Slot: s.String(), Price: defaultPrice}
		if rule := matchRule(s, date, rules); rule != nil {
			id := rule.ID
			p.Price = rule.Price
			p.RuleID = &id
		}
		priced = append(priced, p)
		total += p.Price
	}
	return priced, total
}

// matchRule 选出生效规则
// 优先级：指定日期 > 星期几；同级取创建时间最新；再同级取 ID 最大
func matchRule(slot TimeSlot, date time.Time, rules []*models.DynamicPriceRule) *models.DynamicPriceRule {
	dateStr := date.Format(DateLayout)
	weekday := int(date.Weekday())

	var best *models.DynamicPriceRule
	for _, r := range rules {
		if !r.IsActive || !ruleMatchesDate(r, dateStr, weekday) {
			continue
		}
		start, err := parseClock(r.StartHour, false)
		if err != nil {
			continue
		}
		end, err := parseClock(r.EndHour, true)
		if err != nil || end <= start {
			continue
		}
		if !overlaps(slot.Start(), slot.End(), start, end) {
			continue
		}
		if best == nil || outranks(r, best) {
			best = r
		}
	}
	return best
}

func ruleMatchesDate(r *models.DynamicPriceRule, date string, weekday int) bool {
	if r.IsDateScoped() {
		return *r.Date == date
	}
	return r.DayOfWeek != nil && *r.DayOfWeek == weekday
}

func outranks(a, b *models.DynamicPriceRule) bool {
	if a.IsDateScoped() != b.IsDateScoped() {
		return a.IsDateScoped()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
