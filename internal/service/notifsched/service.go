package notifsched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	bookingRepo "github.com/wsb-platform/booking-service/internal/infra/storage/booking"
)

// Config пороги, по которым вычисляется run_at строк расписания
type Config struct {
	NotifyBeforeStart time.Duration
	NotifyBeforeEnd   time.Duration
	EmailEnabled      bool
}

// Service владеет перестроением расписания уведомлений.
// Перестроение для бронирования - это delete-then-insert только его строк,
// выполняемое в транзакции вызывающей стороны: ядро зовет его в той же
// транзакции, что и мутацию бронирования.
type Service struct {
	bookingRepo  BookingRepository
	userRepo     UserRepository
	scheduleRepo ScheduleRepository
	txManager    TransactionManager
	clock        Clock
	cfg          Config
	logger       Logger
}

// NewService создает новый сервис расписания уведомлений
func NewService(
	bookingRepo BookingRepository,
	userRepo UserRepository,
	scheduleRepo ScheduleRepository,
	txManager TransactionManager,
	clock Clock,
	cfg Config,
	logger Logger,
) *Service {
	return &Service{
		bookingRepo:  bookingRepo,
		userRepo:     userRepo,
		scheduleRepo: scheduleRepo,
		txManager:    txManager,
		clock:        clock,
		cfg:          cfg,
		logger:       logger,
	}
}

// RebuildForBooking перестраивает расписание одного бронирования.
// Если бронирование отсутствует, отменено, завершено или уже закончилось,
// строки только удаляются. Возвращает число вставленных строк.
func (s *Service) RebuildForBooking(ctx context.Context, bookingID int64) (int, error) {
	now := s.clock.Now()

	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil && !errors.Is(err, bookingRepo.ErrBookingNotFound) {
		return 0, fmt.Errorf("%w: RebuildForBooking - get booking: %v", ErrInternal, err)
	}

	if b == nil || b.Cancel || b.Finish != nil || !b.TimeEnd.After(now) {
		deleted, err := s.scheduleRepo.DeleteForBooking(ctx, bookingID, nil)
		if err != nil {
			return 0, fmt.Errorf("%w: RebuildForBooking - delete rows: %v", ErrInternal, err)
		}
		if deleted > 0 {
			s.logger.Info("RebuildForBooking: booking id=%d is not live, removed %d entries", bookingID, deleted)
		}
		return 0, nil
	}

	channels, err := s.channelsFor(ctx, b)
	if err != nil {
		return 0, err
	}

	if _, err := s.scheduleRepo.DeleteForBooking(ctx, bookingID, channels); err != nil {
		return 0, fmt.Errorf("%w: RebuildForBooking - delete rows: %v", ErrInternal, err)
	}

	entries := s.buildEntries(b, channels, now)
	if err := s.scheduleRepo.Insert(ctx, entries); err != nil {
		return 0, fmt.Errorf("%w: RebuildForBooking - insert rows: %v", ErrInternal, err)
	}

	s.logger.Info("RebuildForBooking: booking id=%d, channels=%d, inserted %d entries", bookingID, len(channels), len(entries))
	return len(entries), nil
}

// RebuildAll полностью перестраивает расписание по всем живым бронированиям.
// Вызывается на старте процесса: восстановление после падения.
func (s *Service) RebuildAll(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0

	err := s.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := s.scheduleRepo.Truncate(txCtx); err != nil {
			return fmt.Errorf("%w: RebuildAll - truncate: %v", ErrInternal, err)
		}

		live, err := s.bookingRepo.GetLive(txCtx, now)
		if err != nil {
			return fmt.Errorf("%w: RebuildAll - get live bookings: %v", ErrInternal, err)
		}

		for _, b := range live {
			channels, err := s.channelsFor(txCtx, b)
			if err != nil {
				return err
			}

			entries := s.buildEntries(b, channels, now)
			if err := s.scheduleRepo.Insert(txCtx, entries); err != nil {
				return fmt.Errorf("%w: RebuildAll - insert rows for booking id=%d: %v", ErrInternal, b.ID, err)
			}
			total += len(entries)
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	s.logger.Info("RebuildAll: schedule rebuilt, %d entries", total)
	return total, nil
}

// ClearForBooking удаляет строки бронирования (все каналы, если channels пуст)
func (s *Service) ClearForBooking(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) error {
	if _, err := s.scheduleRepo.DeleteForBooking(ctx, bookingID, channels); err != nil {
		return fmt.Errorf("%w: ClearForBooking - delete rows: %v", ErrInternal, err)
	}
	return nil
}

// buildEntries собирает строки START/END по каждому каналу.
// Строки с run_at в прошлом не создаются: уведомлять уже поздно.
func (s *Service) buildEntries(b *domain.Booking, channels []domain.NotificationChannel, now time.Time) []*domain.ScheduleEntry {
	entries := make([]*domain.ScheduleEntry, 0, len(channels)*2)

	startAt := b.TimeStart.Add(-s.cfg.NotifyBeforeStart)
	endAt := b.TimeEnd.Add(-s.cfg.NotifyBeforeEnd)

	for _, ch := range channels {
		if startAt.After(now) {
			entries = append(entries, &domain.ScheduleEntry{
				BookingID: b.ID,
				Channel:   ch,
				Event:     domain.EventStart,
				RunAt:     startAt,
			})
		}
		if endAt.After(now) {
			entries = append(entries, &domain.ScheduleEntry{
				BookingID: b.ID,
				Channel:   ch,
				Event:     domain.EventEnd,
				RunAt:     endAt,
			})
		}
	}

	return entries
}

// channelsFor возвращает каналы, доступные владельцу бронирования
func (s *Service) channelsFor(ctx context.Context, b *domain.Booking) ([]domain.NotificationChannel, error) {
	u, err := s.userRepo.GetByID(ctx, b.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: channelsFor - get user id=%d: %v", ErrInternal, b.UserID, err)
	}

	channels := make([]domain.NotificationChannel, 0, 2)
	if u.HasChatChannel() {
		channels = append(channels, domain.ChannelChat)
	}
	if s.cfg.EmailEnabled && u.HasEmail() {
		channels = append(channels, domain.ChannelEmail)
	}

	return channels, nil
}
