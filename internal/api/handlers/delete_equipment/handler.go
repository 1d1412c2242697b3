package delete_equipment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	equipmentstorage "github.com/wsb-platform/booking-service/internal/infra/storage/equipment"
)

const (
	msgInvalidID = "некорректный идентификатор оборудования"
	msgNotFound  = "оборудование не найдено"
	msgForbidden = "удаление оборудования доступно только администратору"
	msgInUse     = "на оборудование есть бронирования, удаление невозможно"
)

type Handler struct {
	equipment EquipmentRepository
	logger    Logger
}

func NewHandler(equipment EquipmentRepository, logger Logger) *Handler {
	return &Handler{
		equipment: equipment,
		logger:    logger,
	}
}

// Handle DELETE /api/v1/equipment/{equipmentId}
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		handlers.RespondError(w, http.StatusUnauthorized, "требуется аутентификация")
		return
	}
	if !actor.IsAdmin {
		h.logger.Warn("DELETE /equipment/{id} - Forbidden: user_id=%d", actor.UserID)
		handlers.RespondForbidden(w, msgForbidden)
		return
	}

	equipmentID, err := strconv.ParseInt(mux.Vars(r)["equipmentId"], 10, 64)
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidID)
		return
	}

	if err := h.equipment.Delete(r.Context(), equipmentID); err != nil {
		switch {
		case errors.Is(err, equipmentstorage.ErrEquipmentNotFound):
			h.logger.Warn("DELETE /equipment/{id} - Not found: equipment_id=%d", equipmentID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, equipmentstorage.ErrEquipmentInUse):
			h.logger.Warn("DELETE /equipment/{id} - In use: equipment_id=%d", equipmentID)
			handlers.RespondError(w, http.StatusConflict, msgInUse)

		default:
			h.logger.Error("DELETE /equipment/{id} - Failed to delete: equipment_id=%d, error=%v", equipmentID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("DELETE /equipment/{id} - Equipment deleted: equipment_id=%d, admin_id=%d", equipmentID, actor.UserID)
	handlers.RespondJSON(w, http.StatusNoContent, nil)
}
