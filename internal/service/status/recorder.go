package status

import (
	"time"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/utils"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/events"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// recorder 收集一次事务内的迁移，用于写状态记录、发布事件和清缓存
type recorder struct {
	trigger string
	actorID *int64
	remark  string
	at      time.Time

	transitions []Transition
	events      []events.Event
	released    map[int64][]string
}

func newRecorder(trigger string, actorID *int64, remark string, at time.Time) *recorder {
	return &recorder{
		trigger:  trigger,
		actorID:  actorID,
		remark:   remark,
		at:       at,
		released: make(map[int64][]string),
	}
}

func (r *recorder) payment(p *models.Payment, to string) {
	orderID := p.OrderID
	r.add(Transition{Entity: models.StatusEntityPayment, ID: p.ID, From: p.Status, To: to}, events.Event{
		OrderID: &orderID,
	})
}

func (r *recorder) booking(b *models.Booking, to string) {
	r.add(Transition{Entity: models.StatusEntityBooking, ID: b.ID, From: b.Status, To: to}, events.Event{
		OrderID:     b.OrderID,
		CourtID:     b.CourtID,
		BookingDate: b.BookingDate,
	})
}

func (r *recorder) order(id int64, from, to string) {
	orderID := id
	r.add(Transition{Entity: models.StatusEntityOrder, ID: id, From: from, To: to}, events.Event{
		OrderID: &orderID,
	})
}

// blocking 占用变更不改状态，只发布事件并清缓存
func (r *recorder) blocking(b *models.Booking) {
	r.events = append(r.events, events.Event{
		EntityType:  models.StatusEntityBooking,
		EntityID:    b.ID,
		FromStatus:  b.Status,
		ToStatus:    b.Status,
		Trigger:     r.trigger,
		OrderID:     b.OrderID,
		CourtID:     b.CourtID,
		BookingDate: b.BookingDate,
		OccurredAt:  r.at,
	})
	r.release(b.CourtID, b.BookingDate)
}

func (r *recorder) release(courtID int64, date string) {
	if !utils.Contains(r.released[courtID], date) {
		r.released[courtID] = append(r.released[courtID], date)
	}
}

func (r *recorder) add(t Transition, e events.Event) {
	r.transitions = append(r.transitions, t)
	e.EntityType = t.Entity
	e.EntityID = t.ID
	e.FromStatus = t.From
	e.ToStatus = t.To
	e.Trigger = r.trigger
	e.OccurredAt = r.at
	r.events = append(r.events, e)
}

func (r *recorder) histories() []*models.StatusHistory {
	list := make([]*models.StatusHistory, 0, len(r.transitions))
	for _, t := range r.transitions {
		list = append(list, &models.StatusHistory{
			EntityType: t.Entity,
			EntityID:   t.ID,
			FromStatus: t.From,
			ToStatus:   t.To,
			Trigger:    r.trigger,
			ActorID:    r.actorID,
			Remark:     optionalString(r.remark),
		})
	}
	return list
}
