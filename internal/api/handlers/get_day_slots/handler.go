package get_day_slots

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/slots"
)

const (
	msgInvalidID         = "некорректный идентификатор оборудования"
	msgInvalidDate       = "некорректный формат даты, ожидается YYYY-MM-DD"
	msgEquipmentNotFound = "оборудование не найдено"
)

type Handler struct {
	service SlotService
	logger  Logger
}

func NewHandler(service SlotService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle GET /api/v1/equipment/{equipmentId}/slots?date=YYYY-MM-DD
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	equipmentID, err := strconv.ParseInt(mux.Vars(r)["equipmentId"], 10, 64)
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidID)
		return
	}

	rawDate := r.URL.Query().Get("date")
	day, err := time.Parse(domain.DateFormat, rawDate)
	if err != nil {
		h.logger.Warn("GET /equipment/{equipmentId}/slots - Invalid date: %q", rawDate)
		handlers.RespondBadRequest(w, msgInvalidDate)
		return
	}

	daySlots, err := h.service.SlotsFor(r.Context(), equipmentID, day)
	if err != nil {
		switch {
		case errors.Is(err, slots.ErrEquipmentNotFound):
			h.logger.Warn("GET /equipment/{equipmentId}/slots - Equipment not found: equipment_id=%d", equipmentID)
			handlers.RespondNotFound(w, msgEquipmentNotFound)

		default:
			h.logger.Error("GET /equipment/{equipmentId}/slots - Failed to get slots: equipment_id=%d, error=%v", equipmentID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	handlers.RespondJSON(w, http.StatusOK, FromSlots(equipmentID, rawDate, daySlots))
}
