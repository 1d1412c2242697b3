package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/pkg/psqlbuilder"
	"github.com/wsb-platform/booking-service/pkg/txmanager"
)

// DBExecutor executor для выполнения запросов
type DBExecutor = txmanager.DBExecutor

var entryColumns = []string{
	"id",
	"booking_id",
	"channel",
	"event",
	"run_at",
	"status",
	"attempts",
	"payload",
	"last_error",
	"created_at",
	"updated_at",
}

// claimQuery атомарно переводит due-строки pending -> processing и возвращает их.
// SKIP LOCKED гарантирует, что при нескольких воркерах каждая строка достается
// ровно одному. Написан сырым SQL: squirrel не выражает UPDATE по подзапросу.
const claimQuery = `
UPDATE wsb_notifications_schedule
SET status = 'processing', updated_at = NOW()
WHERE id IN (
	SELECT id FROM wsb_notifications_schedule
	WHERE status = 'pending' AND run_at <= $1
	ORDER BY run_at ASC
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING id, booking_id, channel, event, run_at, status, attempts, payload, last_error, created_at, updated_at`

// Repository репозиторий расписания уведомлений
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория расписания уведомлений
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// DeleteForBooking удаляет строки бронирования по указанным каналам
// (все каналы, если channels пуст). Возвращает число удаленных строк.
func (r *Repository) DeleteForBooking(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) (int64, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	deleteBuilder := psqlbuilder.Delete("wsb_notifications_schedule").
		Where(squirrel.Eq{"booking_id": bookingID})

	if len(channels) > 0 {
		deleteBuilder = deleteBuilder.Where(squirrel.Eq{"channel": channels})
	}

	query, args, err := deleteBuilder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: DeleteForBooking - build delete query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: DeleteForBooking - execute delete: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: DeleteForBooking - get rows affected: %v", ErrExecQuery, err)
	}

	return affected, nil
}

// Insert вставляет строки расписания со статусом pending
func (r *Repository) Insert(ctx context.Context, entries []*domain.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}

	executor := txmanager.GetExecutor(ctx, r.db)

	insertBuilder := psqlbuilder.Insert("wsb_notifications_schedule").
		Columns("booking_id", "channel", "event", "run_at", "status", "payload")

	for _, e := range entries {
		insertBuilder = insertBuilder.Values(e.BookingID, e.Channel, e.Event, e.RunAt, domain.EntryPending, e.Payload)
	}

	query, args, err := insertBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("%w: Insert - build insert query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: Insert - execute insert: %v", ErrExecQuery, err)
	}

	return nil
}

// Truncate удаляет все строки расписания. Используется перед полным
// перестроением на старте процесса.
func (r *Repository) Truncate(ctx context.Context) error {
	executor := txmanager.GetExecutor(ctx, r.db)

	if _, err := executor.ExecContext(ctx, "TRUNCATE wsb_notifications_schedule"); err != nil {
		return fmt.Errorf("%w: Truncate - execute: %v", ErrExecQuery, err)
	}

	return nil
}

// ClaimDue атомарно забирает due-строки в обработку
func (r *Repository) ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.ScheduleEntry, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	rows, err := executor.QueryContext(ctx, claimQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: ClaimDue - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// MarkDone помечает строку выполненной. reason попадает в last_error,
// чтобы отличать доставленные уведомления от отброшенных как stale.
func (r *Repository) MarkDone(ctx context.Context, id int64, reason *string) error {
	return r.execUpdate(ctx, "MarkDone", psqlbuilder.Update("wsb_notifications_schedule").
		Set("status", domain.EntryDone).
		Set("last_error", reason).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// MarkFailed помечает строку окончательно проваленной
func (r *Repository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return r.execUpdate(ctx, "MarkFailed", psqlbuilder.Update("wsb_notifications_schedule").
		Set("status", domain.EntryFailed).
		Set("last_error", lastError).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// Reschedule возвращает строку в pending с новым run_at после временного сбоя
func (r *Repository) Reschedule(ctx context.Context, id int64, runAt time.Time, lastError string) error {
	return r.execUpdate(ctx, "Reschedule", psqlbuilder.Update("wsb_notifications_schedule").
		Set("status", domain.EntryPending).
		Set("run_at", runAt).
		Set("attempts", squirrel.Expr("attempts + 1")).
		Set("last_error", lastError).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// ResetStuck возвращает в pending строки, застрявшие в processing дольше
// threshold (воркер умер между claim и mark). Возвращает число строк.
func (r *Repository) ResetStuck(ctx context.Context, threshold time.Duration, now time.Time) (int64, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("wsb_notifications_schedule").
		Set("status", domain.EntryPending).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"status": domain.EntryProcessing}).
		Where(squirrel.Lt{"updated_at": now.Add(-threshold)}).
		ToSql()

	if err != nil {
		return 0, fmt.Errorf("%w: ResetStuck - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: ResetStuck - execute update: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: ResetStuck - get rows affected: %v", ErrExecQuery, err)
	}

	return affected, nil
}

// GetPendingForBooking получает pending/processing строки бронирования.
// Используется тестами инвариантов и админской диагностикой.
func (r *Repository) GetPendingForBooking(ctx context.Context, bookingID int64) ([]*domain.ScheduleEntry, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(entryColumns...).
		From("wsb_notifications_schedule").
		Where(squirrel.Eq{"booking_id": bookingID}).
		Where(squirrel.Eq{"status": []domain.EntryStatus{domain.EntryPending, domain.EntryProcessing}}).
		OrderBy("run_at ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetPendingForBooking - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetPendingForBooking - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (r *Repository) execUpdate(ctx context.Context, method string, builder squirrel.UpdateBuilder) error {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %s - build update query: %v", ErrBuildQuery, method, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %s - execute update: %v", ErrExecQuery, method, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s - get rows affected: %v", ErrExecQuery, method, err)
	}

	if affected == 0 {
		return ErrEntryNotFound
	}

	return nil
}

func scanEntries(rows *sql.Rows) ([]*domain.ScheduleEntry, error) {
	entries := make([]*domain.ScheduleEntry, 0)

	for rows.Next() {
		var e domain.ScheduleEntry
		var createdAt, updatedAt sql.NullTime

		err := rows.Scan(
			&e.ID,
			&e.BookingID,
			&e.Channel,
			&e.Event,
			&e.RunAt,
			&e.Status,
			&e.Attempts,
			&e.Payload,
			&e.LastError,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanEntries - scan row: %v", ErrScanRow, err)
		}

		e.CreatedAt = createdAt.Time
		e.UpdatedAt = updatedAt.Time

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanEntries - rows error: %v", ErrScanRow, err)
	}

	return entries, nil
}
