package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/pkg/psqlbuilder"
	"github.com/wsb-platform/booking-service/pkg/txmanager"
)

// DBExecutor executor для выполнения запросов
type DBExecutor = txmanager.DBExecutor

// Repository репозиторий для работы с материализованной сеткой слотов
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория слотов
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// GetDay получает сетку слотов оборудования на день [dayStart, dayEnd)
func (r *Repository) GetDay(ctx context.Context, equipmentID int64, dayStart, dayEnd time.Time) ([]*domain.TimeSlot, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(
		"id",
		"equipment_id",
		"slot_start",
		"slot_end",
		"status",
		"booking_id",
	).
		From("wsb_time_slots").
		Where(squirrel.Eq{"equipment_id": equipmentID}).
		Where(squirrel.GtOrEq{"slot_start": dayStart}).
		Where(squirrel.Lt{"slot_start": dayEnd}).
		OrderBy("slot_start ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetDay - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetDay - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	slots := make([]*domain.TimeSlot, 0)
	for rows.Next() {
		var s domain.TimeSlot
		if err := rows.Scan(&s.ID, &s.EquipmentID, &s.SlotStart, &s.SlotEnd, &s.Status, &s.BookingID); err != nil {
			return nil, fmt.Errorf("%w: GetDay - scan row: %v", ErrScanRow, err)
		}
		slots = append(slots, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: GetDay - rows error: %v", ErrScanRow, err)
	}

	return slots, nil
}

// InsertGrid вставляет сетку слотов одним запросом.
// ON CONFLICT DO NOTHING защищает от двух конкурентных материализаций
// одного дня.
func (r *Repository) InsertGrid(ctx context.Context, slots []*domain.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}

	executor := txmanager.GetExecutor(ctx, r.db)

	insertBuilder := psqlbuilder.Insert("wsb_time_slots").
		Columns("equipment_id", "slot_start", "slot_end", "status", "booking_id")

	for _, s := range slots {
		insertBuilder = insertBuilder.Values(s.EquipmentID, s.SlotStart, s.SlotEnd, s.Status, s.BookingID)
	}

	query, args, err := insertBuilder.
		Suffix("ON CONFLICT (equipment_id, slot_start) DO NOTHING").
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: InsertGrid - build insert query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: InsertGrid - execute insert: %v", ErrExecQuery, err)
	}

	return nil
}

// MarkRange помечает слоты оборудования, целиком лежащие в [start, end),
// статусом status с привязкой к bookingID (nil для освобождения).
// Возвращает число затронутых слотов; 0 - сетка дня не материализована.
func (r *Repository) MarkRange(ctx context.Context, equipmentID int64, start, end time.Time, status domain.SlotStatus, bookingID *int64) (int64, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("wsb_time_slots").
		Set("status", status).
		Set("booking_id", bookingID).
		Where(squirrel.Eq{"equipment_id": equipmentID}).
		Where(squirrel.GtOrEq{"slot_start": start}).
		Where(squirrel.LtOrEq{"slot_end": end}).
		ToSql()

	if err != nil {
		return 0, fmt.Errorf("%w: MarkRange - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: MarkRange - execute update: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: MarkRange - get rows affected: %v", ErrExecQuery, err)
	}

	return affected, nil
}

// FreeByBooking освобождает слоты бронирования начиная с since.
// Слоты раньше since остаются booked: история занятости сохраняется.
func (r *Repository) FreeByBooking(ctx context.Context, bookingID int64, since time.Time) error {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("wsb_time_slots").
		Set("status", domain.SlotFree).
		Set("booking_id", nil).
		Where(squirrel.Eq{"booking_id": bookingID}).
		Where(squirrel.GtOrEq{"slot_start": since}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: FreeByBooking - build update query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: FreeByBooking - execute update: %v", ErrExecQuery, err)
	}

	return nil
}
