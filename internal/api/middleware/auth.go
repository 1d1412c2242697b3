// Package middleware HTTP-middleware сервиса: аутентификация и метрики.
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/domain"
)

// HeaderUserID заголовок с ID действующего пользователя.
// Аутентификацию выполняет внешний шлюз, сервис доверяет заголовку.
const HeaderUserID = "X-User-ID"

// Actor действующий пользователь запроса
type Actor struct {
	UserID  int64
	IsAdmin bool
}

type ctxKey struct{}

// UserProvider интерфейс репозитория пользователей
type UserProvider interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Auth проверяет заголовок X-User-ID, загружает пользователя и кладет
// его в контекст запроса
func Auth(users UserProvider, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderUserID)
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				logger.Warn("Auth: missing or malformed %s header: %q", HeaderUserID, raw)
				handlers.RespondError(w, http.StatusUnauthorized, "требуется заголовок X-User-ID")
				return
			}

			u, err := users.GetByID(r.Context(), userID)
			if err != nil {
				logger.Warn("Auth: unknown user id=%d: %v", userID, err)
				handlers.RespondError(w, http.StatusUnauthorized, "пользователь не зарегистрирован")
				return
			}

			actor := Actor{UserID: u.ID, IsAdmin: u.IsAdmin}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, actor)))
		})
	}
}

// ActorFrom достает действующего пользователя из контекста
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(Actor)
	return actor, ok
}
