package user

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

var userColumns = []string{
	"id",
	"display_name",
	"email",
	"chat_id",
	"is_admin",
	"is_blocked",
	"is_active",
	"created_at",
}

// Repository репозиторий для работы с пользователями
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория пользователей
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// GetByID получает пользователя по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %v", ErrBuildQuery, err)
	}

	var u domain.User
	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.DisplayName,
		&u.Email,
		&u.ChatID,
		&u.IsAdmin,
		&u.IsBlocked,
		&u.IsActive,
		&u.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan user: %v", ErrScanRow, err)
	}

	return &u, nil
}

// Deactivate помечает пользователя неактивным.
// Вызывается, когда чат-платформа сообщает, что пользователь заблокировал бота.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	executor := txmanager.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("users").
		Set("is_active", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: Deactivate - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: Deactivate - execute update: %v", ErrExecQuery, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: Deactivate - get rows affected: %v", ErrExecQuery, err)
	}

	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}
