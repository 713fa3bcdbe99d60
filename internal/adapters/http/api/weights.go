package api

import (
	"context"
	"net/http"

	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
)

// WeightsDependencies validates rating weights.
type WeightsDependencies interface {
	ValidateWeights(ctx context.Context, w weights.RatingWeights) (decimal.Decimal, bool)
}

// WeightsHandler handles weight validation requests.
type WeightsHandler struct {
	deps      WeightsDependencies
	validator *Validator
}

// NewWeightsHandler creates a new weights handler.
func NewWeightsHandler(deps WeightsDependencies, v *Validator) *WeightsHandler {
	return &WeightsHandler{deps: deps, validator: v}
}

type weightsRequest struct {
	TaskWeight   decimal.Decimal `json:"task_weight"`
	SurveyWeight decimal.Decimal `json:"survey_weight"`
	ManualWeight decimal.Decimal `json:"manual_weight"`
}

type weightsResponse struct {
	Total decimal.Decimal `json:"total"`
	Valid bool            `json:"valid"`
}

// HandleValidate handles POST /v1/weights/validate requests. Weights that do
// not sum to one are still a 200 with valid=false.
func (h *WeightsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.weights_validate"
	var req weightsRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	total, ok := h.deps.ValidateWeights(r.Context(), weights.RatingWeights{
		TaskWeight:   req.TaskWeight,
		SurveyWeight: req.SurveyWeight,
		ManualWeight: req.ManualWeight,
	})
	writeJSON(w, http.StatusOK, weightsResponse{Total: total, Valid: ok})
}
