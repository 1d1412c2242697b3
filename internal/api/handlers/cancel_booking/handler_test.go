package cancel_booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

type mockService struct {
	CancelFunc func(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error)
}

func (m *mockService) Cancel(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error) {
	return m.CancelFunc(ctx, bookingID, req)
}

type mockNotifier struct {
	notified []*domain.Booking
}

func (m *mockNotifier) NotifyCancelled(ctx context.Context, b *domain.Booking) error {
	m.notified = append(m.notified, b)
	return nil
}

// mockUsers отдает администраторов для ID из adminIDs
type mockUsers struct {
	adminIDs map[int64]bool
}

func (m mockUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return &domain.User{ID: id, DisplayName: "Иван", IsAdmin: m.adminIDs[id], IsActive: true}, nil
}

type nopLogger struct{}

func (nopLogger) Info(format string, v ...interface{})  {}
func (nopLogger) Warn(format string, v ...interface{})  {}
func (nopLogger) Error(format string, v ...interface{}) {}

// serve прогоняет запрос через роутер с auth-middleware,
// как он смонтирован в main
func serve(t *testing.T, service BookingService, notifier CancelNotifier, actorID int64, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	h := NewHandler(service, notifier, nopLogger{})
	users := mockUsers{adminIDs: map[int64]bool{}}
	if admin {
		users.adminIDs[actorID] = true
	}

	r := mux.NewRouter()
	r.Use(middleware.Auth(users, nopLogger{}))
	r.HandleFunc("/api/v1/bookings/{bookingId}/cancel", h.Handle).Methods(http.MethodPatch)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/42/cancel", nil)
	req.Header.Set(middleware.HeaderUserID, strconv.FormatInt(actorID, 10))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	return rec
}

func cancelledBooking(ownerID int64) *domain.Booking {
	start := time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:           42,
		UserID:       ownerID,
		EquipmentID:  5,
		Date:         start,
		TimeStart:    start,
		TimeEnd:      start.Add(2 * time.Hour),
		TimeInterval: "12:00-14:00",
		Cancel:       true,
	}
}

func TestHandle_AdminCancelNotifiesOwner(t *testing.T) {
	service := &mockService{
		CancelFunc: func(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error) {
			require.Equal(t, int64(42), bookingID)
			require.True(t, req.IsAdmin)
			return &bookings.CancelResult{Booking: cancelledBooking(7), OwnerUserID: 7}, nil
		},
	}
	notifier := &mockNotifier{}

	rec := serve(t, service, notifier, 99, true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, int64(42), notifier.notified[0].ID)
	assert.Equal(t, int64(7), notifier.notified[0].UserID)
}

func TestHandle_SelfCancelDoesNotNotify(t *testing.T) {
	service := &mockService{
		CancelFunc: func(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error) {
			return &bookings.CancelResult{Booking: cancelledBooking(7), OwnerUserID: 7}, nil
		},
	}
	notifier := &mockNotifier{}

	rec := serve(t, service, notifier, 7, false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, notifier.notified)
}

func TestHandle_AdminCancelOwnBookingDoesNotNotify(t *testing.T) {
	service := &mockService{
		CancelFunc: func(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error) {
			return &bookings.CancelResult{Booking: cancelledBooking(99), OwnerUserID: 99}, nil
		},
	}
	notifier := &mockNotifier{}

	rec := serve(t, service, notifier, 99, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, notifier.notified)
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"not found", bookings.ErrNotFound, http.StatusNotFound},
		{"forbidden", bookings.ErrForbidden, http.StatusForbidden},
		{"already cancelled", bookings.ErrAlreadyCancelled, http.StatusConflict},
		{"already finished", bookings.ErrAlreadyFinished, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockService{
				CancelFunc: func(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error) {
					return nil, tt.serviceErr
				},
			}
			notifier := &mockNotifier{}

			rec := serve(t, service, notifier, 7, false)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Empty(t, notifier.notified)
		})
	}
}
