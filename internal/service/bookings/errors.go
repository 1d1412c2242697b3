package bookings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wsb-platform/booking-service/internal/domain"
)

var (
	// ErrNotFound бронирование не найдено
	ErrNotFound = errors.New("bookings: booking not found")
	// ErrForbidden операция запрещена для этого пользователя
	ErrForbidden = errors.New("bookings: operation is forbidden")
	// ErrUserBlocked пользователь не может изменять бронирования
	ErrUserBlocked = errors.New("bookings: user is not allowed to book")
	// ErrInvalidInput некорректные входные данные
	ErrInvalidInput = errors.New("bookings: invalid input")
	// ErrInvalidDuration длительность не кратна шагу или неположительна
	ErrInvalidDuration = errors.New("bookings: invalid duration")
	// ErrOutsideWorkday интервал выходит за рабочее окно дня
	ErrOutsideWorkday = errors.New("bookings: interval is outside the working day")
	// ErrPastTime начало интервала в прошлом
	ErrPastTime = errors.New("bookings: start time is in the past")
	// ErrAlreadyCancelled бронирование уже отменено
	ErrAlreadyCancelled = errors.New("bookings: booking is already cancelled")
	// ErrAlreadyFinished бронирование уже завершено
	ErrAlreadyFinished = errors.New("bookings: booking is already finished")
	// ErrNotActive бронирование ещё не началось или уже закончилось
	ErrNotActive = errors.New("bookings: booking is not active")
	// ErrConflict интервал пересекается с живым бронированием
	ErrConflict = errors.New("bookings: interval conflicts with existing booking")
	// ErrLimitExceeded суммарная длительность превышает максимум
	ErrLimitExceeded = errors.New("bookings: duration limit exceeded")
	// ErrInternal внутренняя ошибка сервиса
	ErrInternal = errors.New("bookings: internal error")
)

// ConflictError ошибка пересечения с перечнем мешающих бронирований
type ConflictError struct {
	Conflicts []domain.ConflictInfo
}

// Error возвращает текст ошибки
func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("#%d %s (%s)", c.BookingID, c.TimeStart.Format("15:04"), c.OwnerDisplay))
	}
	return fmt.Sprintf("%v: %s", ErrConflict, strings.Join(parts, ", "))
}

// Unwrap позволяет errors.Is(err, ErrConflict)
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
