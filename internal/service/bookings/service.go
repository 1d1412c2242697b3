package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	storage "github.com/wsb-platform/booking-service/internal/infra/storage/booking"
	userstorage "github.com/wsb-platform/booking-service/internal/infra/storage/user"
)

// Service ядро бронирований: создание, отмена, завершение, продление
// и подтверждение начала. Все мутации выполняются в транзакции, решения
// о пересечениях принимаются под блокировкой строк.
type Service struct {
	bookingRepo BookingRepository
	userRepo    UserRepository
	slotSync    SlotSync
	schedule    ScheduleRebuilder
	txManager   TransactionManager
	clock       Clock
	cfg         Config
	logger      Logger
}

// NewService создает новый сервис бронирований
func NewService(
	bookingRepo BookingRepository,
	userRepo UserRepository,
	slotSync SlotSync,
	schedule ScheduleRebuilder,
	txManager TransactionManager,
	clock Clock,
	cfg Config,
	logger Logger,
) *Service {
	return &Service{
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		slotSync:    slotSync,
		schedule:    schedule,
		txManager:   txManager,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// Create создает бронирование. Проверка пересечений и вставка выполняются
// в одной SERIALIZABLE-транзакции, там же синхронизируется сетка слотов
// и перестраивается расписание уведомлений.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*domain.Booking, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now().In(s.cfg.Location)
	start, end, err := s.computeInterval(req.Date, req.StartTime, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if err := s.checkWorkWindow(start, end); err != nil {
		return nil, err
	}
	if err := s.checkNotPast(start, now); err != nil {
		return nil, err
	}

	var created *domain.Booking
	err = s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		if !req.SkipUserCheck {
			if err := s.checkUserCanBook(txCtx, req.UserID); err != nil {
				return err
			}
		}

		conflicts, err := s.bookingRepo.GetConflicts(txCtx, req.EquipmentID, start, end, nil)
		if err != nil {
			return fmt.Errorf("%w: Create - get conflicts: %v", ErrInternal, err)
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		b := &domain.Booking{
			UserID:        req.UserID,
			EquipmentID:   req.EquipmentID,
			Date:          time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.cfg.Location),
			TimeStart:     start,
			TimeEnd:       end,
			DurationHours: domain.DurationInHours(start, end),
			TimeInterval:  domain.FormatInterval(start, end),
		}
		created, err = s.bookingRepo.Create(txCtx, b)
		if err != nil {
			return fmt.Errorf("%w: Create - insert booking: %v", ErrInternal, err)
		}

		if req.SyncSlots {
			if err := s.slotSync.EnsureDay(txCtx, created.EquipmentID, created.Date); err != nil {
				return fmt.Errorf("%w: Create - ensure slot grid: %v", ErrInternal, err)
			}
			if err := s.slotSync.MarkBooked(txCtx, created); err != nil {
				return fmt.Errorf("%w: Create - mark slots: %v", ErrInternal, err)
			}
		}

		if _, err := s.schedule.RebuildForBooking(txCtx, created.ID); err != nil {
			return fmt.Errorf("%w: Create - rebuild schedule: %v", ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Service: created booking %d for user %d, equipment %d, %s %s",
		created.ID, created.UserID, created.EquipmentID, created.Date.Format(domain.DateFormat), created.TimeInterval)
	return created, nil
}

// Cancel отменяет бронирование. Владелец может отменить только запланированное,
// администратор также идущее. Возвращает владельца для уведомления о
// принудительной отмене.
func (s *Service) Cancel(ctx context.Context, bookingID int64, req *ActorRequest) (*CancelResult, error) {
	now := s.clock.Now().In(s.cfg.Location)

	var res *CancelResult
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		b, err := s.lockBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if b.Cancel {
			return ErrAlreadyCancelled
		}
		status := b.Status(now)
		if status == domain.StatusFinished {
			return ErrAlreadyFinished
		}
		if !req.IsAdmin && b.UserID != req.ActorUserID {
			return ErrForbidden
		}
		if status == domain.StatusActive && !req.IsAdmin {
			return fmt.Errorf("%w: active booking can only be finished by the owner or cancelled by an administrator", ErrForbidden)
		}

		if err := s.bookingRepo.SetCancelled(txCtx, b.ID); err != nil {
			return fmt.Errorf("%w: Cancel - set cancelled: %v", ErrInternal, err)
		}
		if req.SyncSlots {
			if err := s.slotSync.FreeFrom(txCtx, b.ID, b.TimeStart); err != nil {
				return fmt.Errorf("%w: Cancel - free slots: %v", ErrInternal, err)
			}
		}
		if err := s.schedule.ClearForBooking(txCtx, b.ID, nil); err != nil {
			return fmt.Errorf("%w: Cancel - clear schedule: %v", ErrInternal, err)
		}

		b.Cancel = true
		res = &CancelResult{Booking: b, OwnerUserID: b.UserID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Service: cancelled booking %d by user %d (admin=%t)", bookingID, req.ActorUserID, req.IsAdmin)
	return res, nil
}

// AutoCancel отменяет бронирование, начало которого не подтверждено к
// дедлайну. Возвращает false без ошибки, если бронирование уже подтверждено,
// отменено или завершено: гонка с подтверждением решается условным UPDATE.
func (s *Service) AutoCancel(ctx context.Context, bookingID int64) (bool, error) {
	var cancelled bool
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		b, err := s.bookingRepo.GetByIDForUpdate(txCtx, bookingID)
		if err != nil {
			if errors.Is(err, storage.ErrBookingNotFound) {
				return nil
			}
			return fmt.Errorf("%w: AutoCancel - get booking: %v", ErrInternal, err)
		}
		if b.Cancel || b.Finish != nil || b.IsConfirmed() {
			return nil
		}

		cancelled, err = s.bookingRepo.CancelUnconfirmed(txCtx, b.ID)
		if err != nil {
			return fmt.Errorf("%w: AutoCancel - cancel unconfirmed: %v", ErrInternal, err)
		}
		if !cancelled {
			return nil
		}

		if err := s.slotSync.FreeFrom(txCtx, b.ID, b.TimeStart); err != nil {
			return fmt.Errorf("%w: AutoCancel - free slots: %v", ErrInternal, err)
		}
		if err := s.schedule.ClearForBooking(txCtx, b.ID, nil); err != nil {
			return fmt.Errorf("%w: AutoCancel - clear schedule: %v", ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled {
		s.logger.Warn("Service: auto-cancelled unconfirmed booking %d", bookingID)
	}
	return cancelled, nil
}

// Finish завершает идущее бронирование досрочно: занятость укорачивается
// до текущего момента, хвост слотов освобождается.
func (s *Service) Finish(ctx context.Context, bookingID int64, req *ActorRequest) (*domain.Booking, error) {
	now := s.clock.Now().In(s.cfg.Location)

	var finished *domain.Booking
	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		b, err := s.lockBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if b.Cancel {
			return ErrAlreadyCancelled
		}
		status := b.Status(now)
		if status == domain.StatusFinished {
			return ErrAlreadyFinished
		}
		if status != domain.StatusActive {
			return fmt.Errorf("%w: booking has not started yet", ErrNotActive)
		}
		if !req.IsAdmin && b.UserID != req.ActorUserID {
			return ErrForbidden
		}

		if err := s.bookingRepo.SetFinished(txCtx, b.ID, now); err != nil {
			return fmt.Errorf("%w: Finish - set finished: %v", ErrInternal, err)
		}
		if req.SyncSlots {
			if err := s.slotSync.FreeFrom(txCtx, b.ID, now); err != nil {
				return fmt.Errorf("%w: Finish - free slots: %v", ErrInternal, err)
			}
		}
		if err := s.schedule.ClearForBooking(txCtx, b.ID, nil); err != nil {
			return fmt.Errorf("%w: Finish - clear schedule: %v", ErrInternal, err)
		}

		finishAt := now
		b.Finish = &finishAt
		finished = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Service: finished booking %d at %s", bookingID, now.Format(domain.TimestampFormat))
	return finished, nil
}

// Extend продлевает идущее бронирование на кратное шагу число минут.
// Пересечения проверяются только на добавляемом хвосте (old_end, new_end),
// вся проверка и запись выполняются в SERIALIZABLE-транзакции.
func (s *Service) Extend(ctx context.Context, bookingID int64, req *ExtendRequest) (*domain.Booking, error) {
	step := int(s.cfg.Step.Minutes())
	if req.ExtensionMinutes <= 0 || req.ExtensionMinutes%step != 0 {
		return nil, fmt.Errorf("%w: extension %d is not a positive multiple of step %d", ErrInvalidDuration, req.ExtensionMinutes, step)
	}

	now := s.clock.Now().In(s.cfg.Location)

	var extended *domain.Booking
	err := s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		b, err := s.lockBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if b.Cancel {
			return ErrAlreadyCancelled
		}
		status := b.Status(now)
		if status == domain.StatusFinished {
			return ErrAlreadyFinished
		}
		if status != domain.StatusActive {
			return fmt.Errorf("%w: only an active booking can be extended", ErrNotActive)
		}
		if !req.IsAdmin && b.UserID != req.ActorUserID {
			return ErrForbidden
		}

		newEnd := b.TimeEnd.In(s.cfg.Location).Add(time.Duration(req.ExtensionMinutes) * time.Minute)
		workEnd, err := s.cfg.WorkEnd.At(b.Date.In(s.cfg.Location), s.cfg.Location)
		if err != nil {
			return fmt.Errorf("%w: Extend - work end: %v", ErrInternal, err)
		}
		if newEnd.After(workEnd) {
			return fmt.Errorf("%w: new end %s is past %s", ErrOutsideWorkday, newEnd.Format(domain.TimeFormat), s.cfg.WorkEnd)
		}
		if newEnd.Sub(b.TimeStart) > s.cfg.MaxDuration {
			return fmt.Errorf("%w: total duration %.1fh exceeds maximum %.1fh",
				ErrLimitExceeded, newEnd.Sub(b.TimeStart).Hours(), s.cfg.MaxDuration.Hours())
		}

		conflicts, err := s.bookingRepo.GetConflicts(txCtx, b.EquipmentID, b.TimeEnd, newEnd, &b.ID)
		if err != nil {
			return fmt.Errorf("%w: Extend - get conflicts: %v", ErrInternal, err)
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		start := b.TimeStart.In(s.cfg.Location)
		interval := domain.FormatInterval(start, newEnd)
		totalExtension := b.ExtensionMinutes + req.ExtensionMinutes
		if err := s.bookingRepo.UpdateEnd(txCtx, b.ID, newEnd, interval, domain.DurationInHours(start, newEnd), totalExtension); err != nil {
			return fmt.Errorf("%w: Extend - update end: %v", ErrInternal, err)
		}

		b.TimeEnd = newEnd
		b.TimeInterval = interval
		b.DurationHours = domain.DurationInHours(start, newEnd)
		b.ExtensionMinutes = totalExtension

		if req.SyncSlots {
			if err := s.slotSync.EnsureDay(txCtx, b.EquipmentID, b.Date); err != nil {
				return fmt.Errorf("%w: Extend - ensure slot grid: %v", ErrInternal, err)
			}
			if err := s.slotSync.MarkBooked(txCtx, b); err != nil {
				return fmt.Errorf("%w: Extend - mark slots: %v", ErrInternal, err)
			}
		}
		if _, err := s.schedule.RebuildForBooking(txCtx, b.ID); err != nil {
			return fmt.Errorf("%w: Extend - rebuild schedule: %v", ErrInternal, err)
		}

		extended = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Service: extended booking %d by %d minutes, new interval %s",
		bookingID, req.ExtensionMinutes, extended.TimeInterval)
	return extended, nil
}

// Confirm фиксирует подтверждение начала работы владельцем. Идемпотентен:
// повторное подтверждение не является ошибкой. Проигрыш гонки с авто-отменой
// возвращается как ErrAlreadyCancelled.
func (s *Service) Confirm(ctx context.Context, bookingID, actorUserID int64, isAdmin bool) error {
	now := s.clock.Now().In(s.cfg.Location)

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		b, err := s.lockBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if !isAdmin && b.UserID != actorUserID {
			return ErrForbidden
		}
		if b.Cancel {
			return ErrAlreadyCancelled
		}
		if b.Status(now) == domain.StatusFinished {
			return ErrAlreadyFinished
		}
		if b.IsConfirmed() {
			return nil
		}

		ok, err := s.bookingRepo.SetConfirmed(txCtx, b.ID, now)
		if err != nil {
			return fmt.Errorf("%w: Confirm - set confirmed: %v", ErrInternal, err)
		}
		if !ok {
			return ErrAlreadyCancelled
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Service: confirmed start of booking %d by user %d", bookingID, actorUserID)
	return nil
}

// GetByID возвращает бронирование; чужие бронирования видны только администратору
func (s *Service) GetByID(ctx context.Context, bookingID, actorUserID int64, isAdmin bool) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: GetByID - get booking: %v", ErrInternal, err)
	}
	if !isAdmin && b.UserID != actorUserID {
		return nil, ErrForbidden
	}
	return b, nil
}

// GetUserBookings возвращает бронирования пользователя
func (s *Service) GetUserBookings(ctx context.Context, userID int64) ([]*domain.Booking, error) {
	list, err := s.bookingRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: GetUserBookings - get bookings: %v", ErrInternal, err)
	}
	return list, nil
}

// lockBooking читает бронирование под блокировкой строки
func (s *Service) lockBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	b, err := s.bookingRepo.GetByIDForUpdate(ctx, bookingID)
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get booking %d: %v", ErrInternal, bookingID, err)
	}
	return b, nil
}

// checkUserCanBook пользователь существует, активен и не заблокирован
func (s *Service) checkUserCanBook(ctx context.Context, userID int64) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstorage.ErrUserNotFound) {
			return fmt.Errorf("%w: user %d is not registered", ErrUserBlocked, userID)
		}
		return fmt.Errorf("%w: check user: %v", ErrInternal, err)
	}
	if !u.CanBook() {
		return fmt.Errorf("%w: user %d is blocked or inactive", ErrUserBlocked, userID)
	}
	return nil
}
