package booking

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

// bookingColumns полный список колонок таблицы bookings в порядке сканирования
var bookingColumns = []string{
	"id",
	"user_id",
	"equipment_id",
	"date",
	"time_start",
	"time_end",
	"duration",
	"time_interval",
	"cancel",
	"finish",
	"confirm_start",
	"confirm_deadline",
	"extension_minutes",
	"created_at",
	"updated_at",
}

// Repository репозиторий для работы с бронированиями
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория бронирований
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// Create создает новое бронирование.
// Вызывается только внутри транзакции, открытой ядром: проверка конфликтов
// и вставка должны попасть в одну транзакцию.
func (r *Repository) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("bookings").
		Columns(
			"user_id",
			"equipment_id",
			"date",
			"time_start",
			"time_end",
			"duration",
			"time_interval",
			"cancel",
			"extension_minutes",
		).
		Values(
			b.UserID,
			b.EquipmentID,
			b.Date,
			b.TimeStart,
			b.TimeEnd,
			b.DurationHours,
			b.TimeInterval,
			b.Cancel,
			b.ExtensionMinutes,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: Create - build insert query: %v", ErrBuildQuery, err)
	}

	var createdAt, updatedAt sql.NullTime
	err = executor.QueryRowContext(ctx, query, args...).Scan(&b.ID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: Create - execute insert: %v", ErrExecQuery, err)
	}

	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time

	return b, nil
}

// GetByID получает бронирование по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate получает бронирование по ID с блокировкой строки.
// Мутации одного бронирования сериализуются этой блокировкой.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.getByID(ctx, id, true)
}

func (r *Repository) getByID(ctx context.Context, id int64, forUpdate bool) (*domain.Booking, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id})

	if forUpdate && txmanager.IsInTransaction(ctx) {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %v", ErrBuildQuery, err)
	}

	b, err := scanBooking(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan booking: %v", ErrScanRow, err)
	}

	return b, nil
}

// GetByUserID получает бронирования пользователя, новые первыми
func (r *Repository) GetByUserID(ctx context.Context, userID int64) ([]*domain.Booking, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("time_start DESC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByUserID - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetByUserID - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// GetConflicts возвращает неотмененные бронирования оборудования, чья занятость
// [time_start, COALESCE(finish, time_end)) пересекается с [start, end),
// вместе с отображаемым именем владельца для сообщений об ошибке.
// Внутри транзакции пересекающиеся строки блокируются (FOR UPDATE OF b).
func (r *Repository) GetConflicts(ctx context.Context, equipmentID int64, start, end time.Time, excludeID *int64) ([]domain.ConflictInfo, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(
		"b.id",
		"u.display_name",
		"b.time_start",
		"b.time_end",
	).
		From("bookings b").
		Join("users u ON u.id = b.user_id").
		Where(squirrel.Eq{"b.equipment_id": equipmentID}).
		Where(squirrel.Eq{"b.cancel": false}).
		Where(squirrel.Lt{"b.time_start": end}).
		Where(squirrel.Gt{"COALESCE(b.finish, b.time_end)": start}).
		OrderBy("b.time_start ASC")

	if excludeID != nil {
		selectBuilder = selectBuilder.Where(squirrel.NotEq{"b.id": *excludeID})
	}

	if txmanager.IsInTransaction(ctx) {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE OF b")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: GetConflicts - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetConflicts - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	conflicts := make([]domain.ConflictInfo, 0)
	for rows.Next() {
		var c domain.ConflictInfo
		if err := rows.Scan(&c.BookingID, &c.OwnerDisplay, &c.TimeStart, &c.TimeEnd); err != nil {
			return nil, fmt.Errorf("%w: GetConflicts - scan row: %v", ErrScanRow, err)
		}
		conflicts = append(conflicts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: GetConflicts - rows error: %v", ErrScanRow, err)
	}

	return conflicts, nil
}

// GetDayBookings получает неотмененные бронирования оборудования на день
// [dayStart, dayEnd), по возрастанию времени начала
func (r *Repository) GetDayBookings(ctx context.Context, equipmentID int64, dayStart, dayEnd time.Time) ([]*domain.Booking, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"equipment_id": equipmentID}).
		Where(squirrel.Eq{"cancel": false}).
		Where(squirrel.GtOrEq{"time_start": dayStart}).
		Where(squirrel.Lt{"time_start": dayEnd}).
		OrderBy("time_start ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetDayBookings - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetDayBookings - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// GetLive получает неотмененные и незавершенные бронирования с time_end > now.
// Используется при полном перестроении расписания уведомлений.
func (r *Repository) GetLive(ctx context.Context, now time.Time) ([]*domain.Booking, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"cancel": false}).
		Where("finish IS NULL").
		Where(squirrel.Gt{"time_end": now}).
		OrderBy("time_start ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetLive - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetLive - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// SetCancelled помечает бронирование отмененным
func (r *Repository) SetCancelled(ctx context.Context, id int64) error {
	return r.execUpdate(ctx, "SetCancelled", psqlbuilder.Update("bookings").
		Set("cancel", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// CancelUnconfirmed отменяет бронирование, если начало так и не было
// подтверждено. Возвращает false, если подтверждение успело зафиксироваться
// раньше (или бронирование уже отменено) - в гонке побеждает тот, кто
// закоммитился первым.
func (r *Repository) CancelUnconfirmed(ctx context.Context, id int64) (bool, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("bookings").
		Set("cancel", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"cancel": false}).
		Where("confirm_start IS NULL").
		Where("finish IS NULL").
		ToSql()

	if err != nil {
		return false, fmt.Errorf("%w: CancelUnconfirmed - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: CancelUnconfirmed - execute update: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: CancelUnconfirmed - get rows affected: %v", ErrExecQuery, err)
	}

	return affected > 0, nil
}

// SetFinished помечает работу завершенной в момент at
func (r *Repository) SetFinished(ctx context.Context, id int64, at time.Time) error {
	return r.execUpdate(ctx, "SetFinished", psqlbuilder.Update("bookings").
		Set("finish", at).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// UpdateEnd обновляет конец бронирования и производные поля при продлении
func (r *Repository) UpdateEnd(ctx context.Context, id int64, newEnd time.Time, interval string, durationHours float64, extensionMinutes int) error {
	return r.execUpdate(ctx, "UpdateEnd", psqlbuilder.Update("bookings").
		Set("time_end", newEnd).
		Set("time_interval", interval).
		Set("duration", durationHours).
		Set("extension_minutes", extensionMinutes).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// SetConfirmed фиксирует подтверждение начала. Возвращает false, если
// бронирование уже отменено - значит авто-отмена успела первой.
func (r *Repository) SetConfirmed(ctx context.Context, id int64, at time.Time) (bool, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("bookings").
		Set("confirm_start", at).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"cancel": false}).
		ToSql()

	if err != nil {
		return false, fmt.Errorf("%w: SetConfirmed - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: SetConfirmed - execute update: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: SetConfirmed - get rows affected: %v", ErrExecQuery, err)
	}

	return affected > 0, nil
}

// SetConfirmDeadline записывает дедлайн подтверждения начала.
// Строка в БД - источник истины для авто-отмены, in-process таймер лишь
// локальная оптимизация.
func (r *Repository) SetConfirmDeadline(ctx context.Context, id int64, deadline time.Time) error {
	return r.execUpdate(ctx, "SetConfirmDeadline", psqlbuilder.Update("bookings").
		Set("confirm_deadline", deadline).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// GetUnconfirmedExpired возвращает ID бронирований, у которых дедлайн
// подтверждения прошел, а подтверждения так и нет. Страховка на случай
// потери in-process таймеров при перезапуске.
func (r *Repository) GetUnconfirmedExpired(ctx context.Context, now time.Time) ([]int64, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select("id").
		From("bookings").
		Where(squirrel.Eq{"cancel": false}).
		Where("finish IS NULL").
		Where("confirm_start IS NULL").
		Where(squirrel.LtOrEq{"confirm_deadline": now}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetUnconfirmedExpired - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: GetUnconfirmedExpired - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: GetUnconfirmedExpired - scan row: %v", ErrScanRow, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: GetUnconfirmedExpired - rows error: %v", ErrScanRow, err)
	}

	return ids, nil
}

// ExistsForEquipment возвращает true, если на оборудование есть хоть одно
// бронирование (включая прошлые и отмененные). Используется охраной удаления
// оборудования: история не должна терять ссылки.
func (r *Repository) ExistsForEquipment(ctx context.Context, equipmentID int64) (bool, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select("1").
		From("bookings").
		Where(squirrel.Eq{"equipment_id": equipmentID}).
		Limit(1).
		ToSql()

	if err != nil {
		return false, fmt.Errorf("%w: ExistsForEquipment - build select query: %v", ErrBuildQuery, err)
	}

	var one int
	err = executor.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: ExistsForEquipment - scan: %v", ErrScanRow, err)
	}

	return true, nil
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
		return ErrBookingNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.EquipmentID,
		&b.Date,
		&b.TimeStart,
		&b.TimeEnd,
		&b.DurationHours,
		&b.TimeInterval,
		&b.Cancel,
		&b.Finish,
		&b.ConfirmStart,
		&b.ConfirmDeadline,
		&b.ExtensionMinutes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time

	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]*domain.Booking, error) {
	bookings := make([]*domain.Booking, 0)

	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanBookings - scan row: %v", ErrScanRow, err)
		}
		bookings = append(bookings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanBookings - rows error: %v", ErrScanRow, err)
	}

	return bookings, nil
}
