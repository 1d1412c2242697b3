package domain

import "time"

// SlotStatus статус слота в материализованной сетке дня
type SlotStatus string

const (
	SlotFree    SlotStatus = "free"
	SlotBooked  SlotStatus = "booked"
	SlotBlocked SlotStatus = "blocked"
)

// TimeSlot один слот сетки дня: отрезок длиной STEP внутри рабочего окна.
// BookingID заполнен тогда и только тогда, когда статус booked.
type TimeSlot struct {
	ID          int64
	EquipmentID int64
	SlotStart   time.Time
	SlotEnd     time.Time
	Status      SlotStatus
	BookingID   *int64
}

// CoveredBy возвращает true, если слот целиком лежит в [start, end)
func (s *TimeSlot) CoveredBy(start, end time.Time) bool {
	return !s.SlotStart.Before(start) && !s.SlotEnd.After(end)
}
