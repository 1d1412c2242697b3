package list_equipment

import (
	"net/http"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/domain"
)

// EquipmentResponse HTTP-представление единицы оборудования
type EquipmentResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category *string `json:"category,omitempty"`
	Note     *string `json:"note,omitempty"`
}

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

// Handle GET /api/v1/equipment
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	list, err := h.equipment.List(r.Context())
	if err != nil {
		h.logger.Error("GET /equipment - Failed to list equipment: %v", err)
		handlers.RespondInternalError(w)
		return
	}

	result := make([]EquipmentResponse, 0, len(list))
	for _, e := range list {
		result = append(result, fromEquipment(e))
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func fromEquipment(e *domain.Equipment) EquipmentResponse {
	return EquipmentResponse{
		ID:       e.ID,
		Name:     e.Name,
		Category: e.Category,
		Note:     e.Note,
	}
}
