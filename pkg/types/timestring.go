package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimeFormat возвращается, когда строка не соответствует формату HH:MM
var ErrInvalidTimeFormat = errors.New("types: invalid time format, expected HH:MM")

const timeLayout = "15:04"

// TimeString время в пределах суток в формате "HH:MM".
// Используется для границ рабочего дня и времени начала слотов.
type TimeString string

// NewTimeString создает TimeString из time.Time (берёт только часы и минуты)
func NewTimeString(t time.Time) TimeString {
	return TimeString(t.Format(timeLayout))
}

// NewTimeStringFromString создает TimeString из строки с валидацией
func NewTimeStringFromString(s string) (TimeString, error) {
	ts := TimeString(s)
	if err := ts.Validate(); err != nil {
		return "", err
	}
	return ts, nil
}

// String возвращает строковое представление "HH:MM"
func (t TimeString) String() string {
	return string(t)
}

// IsZero возвращает true, если время не задано
func (t TimeString) IsZero() bool {
	return t == ""
}

// Validate проверяет формат HH:MM
func (t TimeString) Validate() error {
	if _, err := time.Parse(timeLayout, string(t)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeFormat, string(t))
	}
	return nil
}

// MinutesFromMidnight возвращает количество минут с начала суток
func (t TimeString) MinutesFromMidnight() (int, error) {
	parsed, err := time.Parse(timeLayout, string(t))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, string(t))
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// AddMinutes возвращает время, сдвинутое на minutes минут вперед.
// Выход за границу суток считается ошибкой: слоты не пересекают полночь.
func (t TimeString) AddMinutes(minutes int) (TimeString, error) {
	total, err := t.MinutesFromMidnight()
	if err != nil {
		return "", err
	}
	total += minutes
	if total < 0 || total >= 24*60 {
		return "", fmt.Errorf("%w: %q + %d minutes is out of day range", ErrInvalidTimeFormat, string(t), minutes)
	}
	return TimeString(fmt.Sprintf("%02d:%02d", total/60, total%60)), nil
}

// IsBefore возвращает true, если t строго раньше other
func (t TimeString) IsBefore(other TimeString) bool {
	return string(t) < string(other)
}

// IsAfter возвращает true, если t строго позже other
func (t TimeString) IsAfter(other TimeString) bool {
	return string(t) > string(other)
}

// At возвращает полный timestamp: дата day + время t в локации loc
func (t TimeString) At(day time.Time, loc *time.Location) (time.Time, error) {
	minutes, err := t.MinutesFromMidnight()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}
