package models

import (
	"errors"
	"time"
)

// Court 场地
type Court struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"type:varchar(100);not null" json:"name"`
	DefaultPrice     int64     `gorm:"not null" json:"default_price"`
	UseVariableHours bool      `gorm:"not null;default:false" json:"use_variable_hours"`
	Status           int8      `gorm:"type:smallint;not null" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	OperatingHours []CourtOperatingHour `gorm:"foreignKey:CourtID" json:"operating_hours,omitempty"`
}

// TableName 表名
func (Court) TableName() string {
	return "courts"
}

// CourtStatus 场地状态
const (
	CourtStatusDisabled = 0 // 停用
	CourtStatusActive   = 1 // 启用
)

// IsActive 是否可预订
func (c *Court) IsActive() bool {
	return c.Status == CourtStatusActive
}

// CourtOperatingHour 场地每周营业时间
// 同一天可以有多段营业时间
type CourtOperatingHour struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourtID   int64     `gorm:"index:idx_court_hours_day;not null" json:"court_id"`
	DayOfWeek int       `gorm:"index:idx_court_hours_day;not null" json:"day_of_week"` // 0=周日
	OpenHour  string    `gorm:"type:varchar(5);not null" json:"open_hour"`
	CloseHour string    `gorm:"type:varchar(5);not null" json:"close_hour"`
	IsClosed  bool      `gorm:"not null;default:false" json:"is_closed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (CourtOperatingHour) TableName() string {
	return "court_operating_hours"
}

// CourtScheduleOverride 指定日期的营业时间（可变营业时间场地使用）
type CourtScheduleOverride struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourtID   int64     `gorm:"index:idx_court_override_date;not null" json:"court_id"`
	Date      string    `gorm:"type:varchar(10);index:idx_court_override_date;not null" json:"date"`
	OpenHour  string    `gorm:"type:varchar(5)" json:"open_hour"`
	CloseHour string    `gorm:"type:varchar(5)" json:"close_hour"`
	IsClosed  bool      `gorm:"not null;default:false" json:"is_closed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (CourtScheduleOverride) TableName() string {
	return "court_schedule_overrides"
}

// DynamicPriceRule 动态价格规则
// Date 与 DayOfWeek 二选一；时段为左闭右开 [StartHour, EndHour)
type DynamicPriceRule struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CourtID   int64     `gorm:"index;not null" json:"court_id"`
	Date      *string   `gorm:"type:varchar(10)" json:"date,omitempty"`
	DayOfWeek *int      `json:"day_of_week,omitempty"`
	StartHour string    `gorm:"type:varchar(5);not null" json:"start_hour"`
	EndHour   string    `gorm:"type:varchar(5);not null" json:"end_hour"`
	Price     int64     `gorm:"not null" json:"price"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (DynamicPriceRule) TableName() string {
	return "dynamic_price_rules"
}

// IsDateScoped 是否为指定日期规则
func (r *DynamicPriceRule) IsDateScoped() bool {
	return r.Date != nil && *r.Date != ""
}

// 价格规则校验错误
var (
	ErrPriceRuleScope = errors.New("price rule must set exactly one of date or day_of_week")
	ErrPriceRuleRange = errors.New("price rule start_hour must be before end_hour")
)

// Validate 校验规则：日期与星期必须且只能设置一个，时段不能为空
func (r *DynamicPriceRule) Validate() error {
	hasDate := r.IsDateScoped()
	hasDay := r.DayOfWeek != nil
	if hasDate == hasDay {
		return ErrPriceRuleScope
	}
	if hasDay && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return ErrPriceRuleScope
	}
	// HH:MM 定长格式，字符串比较即时间先后；00:00 作为结束时间表示午夜
	end := r.EndHour
	if end == "00:00" {
		end = "24:00"
	}
	if r.StartHour == "" || r.StartHour >= end {
		return ErrPriceRuleRange
	}
	return nil
}
