package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	equipmentstorage "github.com/wsb-platform/booking-service/internal/infra/storage/equipment"
	"github.com/wsb-platform/booking-service/pkg/types"
)

// Config параметры сетки из конфигурации сервиса
type Config struct {
	Location  *time.Location
	WorkStart types.TimeString
	WorkEnd   types.TimeString
	Step      time.Duration
}

// Service сетка слотов дня. Сетка материализуется лениво и поддерживается
// мутациями ядра, но источником истины остается таблица бронирований:
// чтение всегда накладывает живые бронирования поверх сохраненных строк.
type Service struct {
	slotRepo      SlotRepository
	bookingRepo   BookingRepository
	equipmentRepo EquipmentRepository
	txManager     TransactionManager
	cfg           Config
	logger        Logger
}

// NewService создает новый сервис слотов
func NewService(
	slotRepo SlotRepository,
	bookingRepo BookingRepository,
	equipmentRepo EquipmentRepository,
	txManager TransactionManager,
	cfg Config,
	logger Logger,
) *Service {
	return &Service{
		slotRepo:      slotRepo,
		bookingRepo:   bookingRepo,
		equipmentRepo: equipmentRepo,
		txManager:     txManager,
		cfg:           cfg,
		logger:        logger,
	}
}

// SlotsFor возвращает сетку слотов оборудования на день с наложенной
// занятостью из таблицы бронирований
func (s *Service) SlotsFor(ctx context.Context, equipmentID int64, day time.Time) ([]*domain.TimeSlot, error) {
	if _, err := s.equipmentRepo.GetByID(ctx, equipmentID); err != nil {
		if errors.Is(err, equipmentstorage.ErrEquipmentNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, fmt.Errorf("%w: SlotsFor - get equipment: %v", ErrInternal, err)
	}

	dayStart, dayEnd, err := s.dayBounds(day)
	if err != nil {
		return nil, err
	}

	var result []*domain.TimeSlot
	err = s.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := s.EnsureDay(txCtx, equipmentID, day); err != nil {
			return err
		}

		stored, err := s.slotRepo.GetDay(txCtx, equipmentID, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("%w: SlotsFor - get stored grid: %v", ErrInternal, err)
		}

		bookings, err := s.bookingRepo.GetDayBookings(txCtx, equipmentID, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("%w: SlotsFor - get day bookings: %v", ErrInternal, err)
		}

		result = overlay(stored, bookings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// EnsureDay материализует сетку дня, если её ещё нет. Идемпотентен:
// вставка защищена ON CONFLICT DO NOTHING.
func (s *Service) EnsureDay(ctx context.Context, equipmentID int64, day time.Time) error {
	grid, err := s.buildGrid(equipmentID, day)
	if err != nil {
		return err
	}
	if err := s.slotRepo.InsertGrid(ctx, grid); err != nil {
		return fmt.Errorf("%w: EnsureDay - insert grid: %v", ErrInternal, err)
	}
	return nil
}

// MarkBooked помечает слоты занятости бронирования как booked
func (s *Service) MarkBooked(ctx context.Context, b *domain.Booking) error {
	affected, err := s.slotRepo.MarkRange(ctx, b.EquipmentID, b.TimeStart, b.EffectiveEnd(), domain.SlotBooked, &b.ID)
	if err != nil {
		return fmt.Errorf("%w: MarkBooked - mark range: %v", ErrInternal, err)
	}
	if affected == 0 {
		s.logger.Warn("MarkBooked: no slots affected for booking id=%d, grid not materialized?", b.ID)
	}
	return nil
}

// FreeFrom освобождает слоты бронирования начиная с since
func (s *Service) FreeFrom(ctx context.Context, bookingID int64, since time.Time) error {
	if err := s.slotRepo.FreeByBooking(ctx, bookingID, since); err != nil {
		return fmt.Errorf("%w: FreeFrom - free slots: %v", ErrInternal, err)
	}
	return nil
}

// buildGrid строит слоты рабочего окна дня: полуоткрытые отрезки длиной
// Step, покрывающие [WorkStart, WorkEnd) без остатка
func (s *Service) buildGrid(equipmentID int64, day time.Time) ([]*domain.TimeSlot, error) {
	dayStart, dayEnd, err := s.dayBounds(day)
	if err != nil {
		return nil, err
	}

	window := dayEnd.Sub(dayStart)
	if window <= 0 || window%s.cfg.Step != 0 {
		return nil, fmt.Errorf("%w: window %s-%s, step %s", ErrInvalidWindow, s.cfg.WorkStart, s.cfg.WorkEnd, s.cfg.Step)
	}

	count := int(window / s.cfg.Step)
	grid := make([]*domain.TimeSlot, 0, count)
	for cursor := dayStart; cursor.Before(dayEnd); cursor = cursor.Add(s.cfg.Step) {
		grid = append(grid, &domain.TimeSlot{
			EquipmentID: equipmentID,
			SlotStart:   cursor,
			SlotEnd:     cursor.Add(s.cfg.Step),
			Status:      domain.SlotFree,
		})
	}

	return grid, nil
}

// dayBounds возвращает границы рабочего окна дня во временной зоне сервиса
func (s *Service) dayBounds(day time.Time) (time.Time, time.Time, error) {
	local := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.cfg.Location)

	start, err := s.cfg.WorkStart.At(local, s.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: work_start: %v", ErrInternal, err)
	}
	end, err := s.cfg.WorkEnd.At(local, s.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: work_end: %v", ErrInternal, err)
	}
	return start, end, nil
}

// overlay накладывает живые бронирования на сохраненную сетку.
// Сохраненный статус blocked сильнее бронирований; в остальном занятость
// слота выводится из таблицы бронирований, а не из сохраненного статуса.
func overlay(stored []*domain.TimeSlot, bookings []*domain.Booking) []*domain.TimeSlot {
	result := make([]*domain.TimeSlot, 0, len(stored))

	for _, slot := range stored {
		out := *slot
		if out.Status != domain.SlotBlocked {
			out.Status = domain.SlotFree
			out.BookingID = nil
			for _, b := range bookings {
				if b.Cancel {
					continue
				}
				if slot.CoveredBy(b.TimeStart, b.EffectiveEnd()) {
					out.Status = domain.SlotBooked
					id := b.ID
					out.BookingID = &id
					break
				}
			}
		}
		result = append(result, &out)
	}

	return result
}
