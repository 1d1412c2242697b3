package bookings

import (
	"fmt"
	"time"
)

// validateCreate проверяет входные данные запроса до обращения к базе
func (s *Service) validateCreate(req *CreateRequest) error {
	if req.UserID <= 0 || req.EquipmentID <= 0 {
		return fmt.Errorf("%w: user_id and equipment_id must be positive", ErrInvalidInput)
	}
	if req.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if err := req.StartTime.Validate(); err != nil {
		return fmt.Errorf("%w: start_time: %v", ErrInvalidInput, err)
	}
	return s.validateDuration(req.DurationMinutes)
}

// validateDuration длительность положительна, кратна шагу и не больше максимума
func (s *Service) validateDuration(minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d minutes", ErrInvalidDuration, minutes)
	}
	step := int(s.cfg.Step.Minutes())
	if minutes%step != 0 {
		return fmt.Errorf("%w: duration %d is not a multiple of step %d", ErrInvalidDuration, minutes, step)
	}
	if time.Duration(minutes)*time.Minute > s.cfg.MaxDuration {
		return fmt.Errorf("%w: duration %d exceeds maximum %d minutes", ErrLimitExceeded, minutes, int(s.cfg.MaxDuration.Minutes()))
	}
	return nil
}

// computeInterval переводит дату и время начала в абсолютный интервал
// [start, end) во временной зоне сервиса
func (s *Service) computeInterval(date time.Time, startTime fmt.Stringer, minutes int) (time.Time, time.Time, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.Location)
	start, err := time.ParseInLocation("2006-01-02 15:04", day.Format("2006-01-02")+" "+startTime.String(), s.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_time: %v", ErrInvalidInput, err)
	}
	return start, start.Add(time.Duration(minutes) * time.Minute), nil
}

// checkWorkWindow интервал целиком лежит в [WorkStart, WorkEnd) своего дня,
// а начало попадает на сетку шага
func (s *Service) checkWorkWindow(start, end time.Time) error {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.cfg.Location)
	workStart, err := s.cfg.WorkStart.At(day, s.cfg.Location)
	if err != nil {
		return fmt.Errorf("%w: work_start: %v", ErrInternal, err)
	}
	workEnd, err := s.cfg.WorkEnd.At(day, s.cfg.Location)
	if err != nil {
		return fmt.Errorf("%w: work_end: %v", ErrInternal, err)
	}
	if start.Before(workStart) || end.After(workEnd) {
		return fmt.Errorf("%w: interval %s-%s is outside %s-%s",
			ErrOutsideWorkday,
			start.Format("15:04"), end.Format("15:04"),
			s.cfg.WorkStart, s.cfg.WorkEnd)
	}
	if start.Sub(workStart)%s.cfg.Step != 0 {
		return fmt.Errorf("%w: start time %s is not on the slot grid", ErrInvalidInput, start.Format("15:04"))
	}
	return nil
}

// checkNotPast начало интервала не должно быть в прошлом
func (s *Service) checkNotPast(start, now time.Time) error {
	if start.Before(now) {
		return fmt.Errorf("%w: start %s is before now %s",
			ErrPastTime, start.Format("2006-01-02 15:04"), now.Format("2006-01-02 15:04"))
	}
	return nil
}
