package equipment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/pkg/psqlbuilder"
	"github.com/wsb-platform/booking-service/pkg/txmanager"
)

// DBExecutor executor для выполнения запросов
type DBExecutor = txmanager.DBExecutor

var equipmentColumns = []string{
	"id",
	"name",
	"category",
	"note",
	"created_at",
}

// Repository репозиторий для работы с оборудованием
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория оборудования
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// GetByID получает оборудование по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(equipmentColumns...).
		From("equipment").
		Where(squirrel.Eq{"id": id}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %v", ErrBuildQuery, err)
	}

	var e domain.Equipment
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&e.ID,
		&e.Name,
		&e.Category,
		&e.Note,
		&e.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrEquipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan equipment: %v", ErrScanRow, err)
	}

	return &e, nil
}

// List получает все оборудование по алфавиту
func (r *Repository) List(ctx context.Context) ([]*domain.Equipment, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(equipmentColumns...).
		From("equipment").
		OrderBy("name ASC").
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: List - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: List - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	items := make([]*domain.Equipment, 0)
	for rows.Next() {
		var e domain.Equipment
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: List - scan row: %v", ErrScanRow, err)
		}
		items = append(items, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: List - rows error: %v", ErrScanRow, err)
	}

	return items, nil
}

// Delete удаляет оборудование. Удаление отклоняется, пока на оборудование
// ссылается хоть одно бронирование. Проверка и DELETE идут отдельными
// запросами без транзакции; гонку между ними закрывает внешний ключ
// bookings.equipment_id, вставка в зазоре уронит DELETE ошибкой базы.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	executor := txmanager.GetExecutor(ctx, r.db)

	checkQuery, checkArgs, err := psqlbuilder.Select("1").
		From("bookings").
		Where(squirrel.Eq{"equipment_id": id}).
		Limit(1).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: Delete - build check query: %v", ErrBuildQuery, err)
	}

	var one int
	err = executor.QueryRowContext(ctx, checkQuery, checkArgs...).Scan(&one)
	if err == nil {
		return ErrEquipmentInUse
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("%w: Delete - check references: %v", ErrScanRow, err)
	}

	query, args, err := psqlbuilder.Delete("equipment").
		Where(squirrel.Eq{"id": id}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: Delete - build delete query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: Delete - execute delete: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: Delete - get rows affected: %v", ErrExecQuery, err)
	}

	if affected == 0 {
		return ErrEquipmentNotFound
	}

	return nil
}
