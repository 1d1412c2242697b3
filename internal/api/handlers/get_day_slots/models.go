package get_day_slots

import (
	"github.com/wsb-platform/booking-service/internal/domain"
)

// SlotResponse один слот сетки дня
type SlotResponse struct {
	SlotStart string `json:"slotStart"` // "12:00"
	SlotEnd   string `json:"slotEnd"`
	Status    string `json:"status"`
	BookingID *int64 `json:"bookingId,omitempty"`
}

// DaySlotsResponse сетка слотов оборудования на день
type DaySlotsResponse struct {
	EquipmentID int64          `json:"equipmentId"`
	Date        string         `json:"date"`
	Slots       []SlotResponse `json:"slots"`
}

// FromSlots конвертирует слоты в HTTP-представление
func FromSlots(equipmentID int64, date string, slots []*domain.TimeSlot) *DaySlotsResponse {
	result := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		result = append(result, SlotResponse{
			SlotStart: s.SlotStart.Format(domain.TimeFormat),
			SlotEnd:   s.SlotEnd.Format(domain.TimeFormat),
			Status:    string(s.Status),
			BookingID: s.BookingID,
		})
	}
	return &DaySlotsResponse{
		EquipmentID: equipmentID,
		Date:        date,
		Slots:       result,
	}
}
