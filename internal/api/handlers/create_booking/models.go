package create_booking

import (
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
	"github.com/wsb-platform/booking-service/pkg/types"
)

// CreateBookingRequest HTTP request model
type CreateBookingRequest struct {
	EquipmentID     int64  `json:"equipmentId"`
	Date            string `json:"date"`      // "2026-03-10"
	StartTime       string `json:"startTime"` // "12:00"
	DurationMinutes int    `json:"durationMinutes"`
}

// ToServiceRequest конвертирует HTTP запрос в модель сервиса
func (r *CreateBookingRequest) ToServiceRequest(userID int64) (*bookings.CreateRequest, error) {
	date, err := time.Parse(domain.DateFormat, r.Date)
	if err != nil {
		return nil, err
	}

	startTime, err := types.NewTimeStringFromString(r.StartTime)
	if err != nil {
		return nil, err
	}

	return &bookings.CreateRequest{
		UserID:          userID,
		EquipmentID:     r.EquipmentID,
		Date:            date,
		StartTime:       startTime,
		DurationMinutes: r.DurationMinutes,
		SyncSlots:       true,
	}, nil
}
