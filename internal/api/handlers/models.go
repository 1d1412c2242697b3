package handlers

import (
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
)

// BookingResponse HTTP-представление бронирования, общее для всех операций
type BookingResponse struct {
	ID               int64   `json:"id"`
	UserID           int64   `json:"userId"`
	EquipmentID      int64   `json:"equipmentId"`
	Date             string  `json:"date"`
	TimeInterval     string  `json:"timeInterval"`
	DurationHours    float64 `json:"durationHours"`
	Status           string  `json:"status"`
	ExtensionMinutes int     `json:"extensionMinutes,omitempty"`
	FinishedAt       *string `json:"finishedAt,omitempty"`
	ConfirmedAt      *string `json:"confirmedAt,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

// FromBooking конвертирует доменное бронирование в HTTP-представление
func FromBooking(b *domain.Booking, now time.Time) *BookingResponse {
	resp := &BookingResponse{
		ID:               b.ID,
		UserID:           b.UserID,
		EquipmentID:      b.EquipmentID,
		Date:             b.Date.Format(domain.DateFormat),
		TimeInterval:     b.TimeInterval,
		DurationHours:    b.DurationHours,
		Status:           string(b.Status(now)),
		ExtensionMinutes: b.ExtensionMinutes,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        b.UpdatedAt.Format(time.RFC3339),
	}
	if b.Finish != nil {
		s := b.Finish.Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	if b.ConfirmStart != nil {
		s := b.ConfirmStart.Format(time.RFC3339)
		resp.ConfirmedAt = &s
	}
	return resp
}

// ConflictResponse тело ответа 409 с перечнем мешающих бронирований
type ConflictResponse struct {
	Error     string         `json:"error"`
	Conflicts []ConflictItem `json:"conflicts"`
}

// ConflictItem одно мешающее бронирование
type ConflictItem struct {
	BookingID    int64  `json:"bookingId"`
	OwnerDisplay string `json:"ownerDisplay"`
	TimeStart    string `json:"timeStart"`
	TimeEnd      string `json:"timeEnd"`
}

// FromConflicts конвертирует перечень пересечений в HTTP-представление
func FromConflicts(message string, conflicts []domain.ConflictInfo) *ConflictResponse {
	items := make([]ConflictItem, 0, len(conflicts))
	for _, c := range conflicts {
		items = append(items, ConflictItem{
			BookingID:    c.BookingID,
			OwnerDisplay: c.OwnerDisplay,
			TimeStart:    c.TimeStart.Format(domain.TimeFormat),
			TimeEnd:      c.TimeEnd.Format(domain.TimeFormat),
		})
	}
	return &ConflictResponse{Error: message, Conflicts: items}
}
