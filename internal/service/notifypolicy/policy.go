// Package notifypolicy содержит чистые правила уместности уведомлений.
// Это единственное место, где сверяются временные пороги: диспетчер и
// перестроение расписания перепроверяют уведомления только через эти функции.
package notifypolicy

import (
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/pkg/types"
)

// Rules пороги уведомлений и параметры рабочего окна
type Rules struct {
	NotifyBeforeStart time.Duration
	NotifyBeforeEnd   time.Duration
	Step              time.Duration
	WorkEnd           types.TimeString
	Location          *time.Location
}

// ValidForStartNotification возвращает true, если напоминание о начале
// еще имеет смысл: бронирование запланировано и до начала осталось
// не больше NotifyBeforeStart
func (r Rules) ValidForStartNotification(now time.Time, b *domain.Booking) bool {
	if b.Status(now) != domain.StatusPlanned {
		return false
	}
	until := b.TimeStart.Sub(now)
	return until >= 0 && until <= r.NotifyBeforeStart
}

// ValidForEndNotification возвращает true, если напоминание об окончании
// еще имеет смысл: бронирование живо и до конца осталось не больше
// NotifyBeforeEnd
func (r Rules) ValidForEndNotification(now time.Time, b *domain.Booking) bool {
	status := b.Status(now)
	if status != domain.StatusPlanned && status != domain.StatusActive {
		return false
	}
	until := b.TimeEnd.Sub(now)
	return until >= 0 && until <= r.NotifyBeforeEnd
}

// MayOfferExtension возвращает true, если вместе с напоминанием об
// окончании можно предложить продление: бронирование активно, следующий
// шаг помещается в рабочее окно дня и не занят соседним бронированием
func (r Rules) MayOfferExtension(now time.Time, b *domain.Booking, hasConflictInNextStep bool) bool {
	if b.Status(now) != domain.StatusActive {
		return false
	}
	if hasConflictInNextStep {
		return false
	}

	workEnd, err := r.WorkEnd.At(b.Date, r.Location)
	if err != nil {
		return false
	}

	return !b.TimeEnd.Add(r.Step).After(workEnd)
}
