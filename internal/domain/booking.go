package domain

import (
	"fmt"
	"time"
)

// BookingStatus статус бронирования, выводится из полей строки и часов
type BookingStatus string

const (
	StatusPlanned   BookingStatus = "planned"
	StatusActive    BookingStatus = "active"
	StatusCancelled BookingStatus = "cancelled"
	StatusFinished  BookingStatus = "finished"
)

// Booking бронирование одной единицы оборудования на непрерывный
// полуоткрытый интервал [TimeStart, TimeEnd) в пределах одного дня.
// Строки не удаляются: история сохраняется через Cancel/Finish.
type Booking struct {
	ID          int64
	UserID      int64
	EquipmentID int64

	Date      time.Time // локальный день, всегда равен дате TimeStart
	TimeStart time.Time
	TimeEnd   time.Time

	DurationHours float64 // производное, часы
	TimeInterval  string  // производное, "HH:MM-HH:MM"

	Cancel bool
	Finish *time.Time // момент досрочного завершения работы, nil если не завершено

	ConfirmStart    *time.Time // когда пользователь подтвердил начало
	ConfirmDeadline *time.Time // дедлайн подтверждения; источник истины для авто-отмены

	ExtensionMinutes int // аккумулятор продлений

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status выводит статус бронирования на момент now.
// Порядок проверок фиксирован: cancel сильнее finish, finish сильнее времени.
func (b *Booking) Status(now time.Time) BookingStatus {
	switch {
	case b.Cancel:
		return StatusCancelled
	case b.Finish != nil || !now.Before(b.TimeEnd):
		return StatusFinished
	case now.Before(b.TimeStart):
		return StatusPlanned
	default:
		return StatusActive
	}
}

// EffectiveEnd возвращает фактический конец занятости:
// finish, если работа завершена досрочно, иначе time_end
func (b *Booking) EffectiveEnd() time.Time {
	if b.Finish != nil {
		return *b.Finish
	}
	return b.TimeEnd
}

// IsConfirmed возвращает true, если начало подтверждено
func (b *Booking) IsConfirmed() bool {
	return b.ConfirmStart != nil
}

// Overlaps проверяет пересечение занятости с интервалом [start, end).
// Смежные интервалы (конец одного равен началу другого) не пересекаются.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.TimeStart.Before(end) && b.EffectiveEnd().After(start)
}

// FormatInterval собирает отображаемый интервал "HH:MM-HH:MM"
func FormatInterval(start, end time.Time) string {
	return fmt.Sprintf("%s%s%s", start.Format(TimeFormat), IntervalSeparator, end.Format(TimeFormat))
}

// DurationInHours возвращает длительность интервала в часах
func DurationInHours(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// ConflictInfo информация о пересекающемся бронировании для сообщений об ошибке
type ConflictInfo struct {
	BookingID    int64
	OwnerDisplay string
	TimeStart    time.Time
	TimeEnd      time.Time
}
