package create_booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

type mockService struct {
	CreateFunc func(ctx context.Context, req *bookings.CreateRequest) (*domain.Booking, error)
}

func (m *mockService) Create(ctx context.Context, req *bookings.CreateRequest) (*domain.Booking, error) {
	return m.CreateFunc(ctx, req)
}

type mockUsers struct{}

func (mockUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return &domain.User{ID: id, DisplayName: "Иван"}, nil
}

type nopLogger struct{}

func (nopLogger) Info(format string, v ...interface{})  {}
func (nopLogger) Warn(format string, v ...interface{})  {}
func (nopLogger) Error(format string, v ...interface{}) {}

// serve прогоняет запрос через auth-middleware и обработчик,
// как он смонтирован в роутере
func serve(t *testing.T, service BookingService, body string) *httptest.ResponseRecorder {
	t.Helper()

	h := NewHandler(service, nopLogger{})
	wrapped := middleware.Auth(mockUsers{}, nopLogger{})(http.HandlerFunc(h.Handle))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewBufferString(body))
	req.Header.Set(middleware.HeaderUserID, "7")
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)
	return rec
}

func TestHandle_Created(t *testing.T) {
	start := time.Date(2030, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &mockService{
		CreateFunc: func(ctx context.Context, req *bookings.CreateRequest) (*domain.Booking, error) {
			require.Equal(t, int64(7), req.UserID)
			require.Equal(t, int64(3), req.EquipmentID)
			require.Equal(t, 120, req.DurationMinutes)
			require.True(t, req.SyncSlots)

			return &domain.Booking{
				ID:            101,
				UserID:        req.UserID,
				EquipmentID:   req.EquipmentID,
				Date:          req.Date,
				TimeStart:     start,
				TimeEnd:       start.Add(2 * time.Hour),
				DurationHours: 2,
				TimeInterval:  "12:00-14:00",
				CreatedAt:     start,
				UpdatedAt:     start,
			}, nil
		},
	}

	rec := serve(t, service, `{"equipmentId":3,"date":"2030-03-10","startTime":"12:00","durationMinutes":120}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handlers.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(101), resp.ID)
	assert.Equal(t, "2030-03-10", resp.Date)
	assert.Equal(t, "12:00-14:00", resp.TimeInterval)
	assert.Equal(t, string(domain.StatusPlanned), resp.Status)
}

func TestHandle_Conflict(t *testing.T) {
	service := &mockService{
		CreateFunc: func(ctx context.Context, req *bookings.CreateRequest) (*domain.Booking, error) {
			return nil, &bookings.ConflictError{Conflicts: []domain.ConflictInfo{
				{
					BookingID:    55,
					OwnerDisplay: "Петр",
					TimeStart:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
					TimeEnd:      time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
				},
			}}
		},
	}

	rec := serve(t, service, `{"equipmentId":3,"date":"2026-03-10","startTime":"12:00","durationMinutes":120}`)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp handlers.ConflictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, int64(55), resp.Conflicts[0].BookingID)
	assert.Equal(t, "12:00", resp.Conflicts[0].TimeStart)
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{
			name:       "blocked user",
			body:       `{"equipmentId":3,"date":"2026-03-10","startTime":"12:00","durationMinutes":60}`,
			serviceErr: bookings.ErrUserBlocked,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "duration off the step",
			body:       `{"equipmentId":3,"date":"2026-03-10","startTime":"12:00","durationMinutes":45}`,
			serviceErr: bookings.ErrInvalidDuration,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "outside workday",
			body:       `{"equipmentId":3,"date":"2026-03-10","startTime":"20:00","durationMinutes":120}`,
			serviceErr: bookings.ErrOutsideWorkday,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed date",
			body:       `{"equipmentId":3,"date":"10.03.2026","startTime":"12:00","durationMinutes":60}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"equipmentId":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"equipmentId":3,"date":"2026-03-10","startTime":"12:00","durationMinutes":60,"extra":1}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockService{
				CreateFunc: func(ctx context.Context, req *bookings.CreateRequest) (*domain.Booking, error) {
					return nil, tt.serviceErr
				},
			}

			rec := serve(t, service, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
