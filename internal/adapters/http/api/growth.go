package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// GrowthDependencies resolves growth bonuses.
type GrowthDependencies interface {
	ResolveGrowth(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, bool, error)
}

// GrowthHandler handles growth bonus requests.
type GrowthHandler struct {
	deps      GrowthDependencies
	validator *Validator
}

// NewGrowthHandler creates a new growth handler.
func NewGrowthHandler(deps GrowthDependencies, v *Validator) *GrowthHandler {
	return &GrowthHandler{deps: deps, validator: v}
}

type growthRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

type growthResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	Bonus     decimal.Decimal `json:"bonus"`
	Qualifies bool            `json:"qualifies"`
}

// HandleResolve handles POST /v1/growth/resolve requests.
func (h *GrowthHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.growth_resolve"
	var req growthRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	bonus, ok, err := h.deps.ResolveGrowth(r.Context(), *req.Amount)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, growthResponse{Amount: *req.Amount, Bonus: bonus, Qualifies: ok})
}
