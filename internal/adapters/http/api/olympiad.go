package api

import (
	"context"
	"net/http"

	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/shopspring/decimal"
)

// OlympiadDependencies scores olympiad achievements.
type OlympiadDependencies interface {
	OlympiadScore(ctx context.Context, level olympiad.Level, placement, studentCount int) (decimal.Decimal, error)
	OlympiadTotal(ctx context.Context, achievements []olympiad.Achievement) (decimal.Decimal, error)
	OlympiadRules(ctx context.Context) (map[olympiad.Level][]olympiad.Rule, error)
}

// OlympiadHandler handles olympiad scoring requests.
type OlympiadHandler struct {
	deps      OlympiadDependencies
	validator *Validator
}

// NewOlympiadHandler creates a new olympiad handler.
func NewOlympiadHandler(deps OlympiadDependencies, v *Validator) *OlympiadHandler {
	return &OlympiadHandler{deps: deps, validator: v}
}

type olympiadScoreRequest struct {
	Level        string `json:"level" validate:"required,olympiad_level"`
	Placement    int    `json:"placement" validate:"gte=0"`
	StudentCount int    `json:"student_count" validate:"gte=0"`
}

type olympiadTotalRequest struct {
	Achievements []olympiad.Achievement `json:"achievements" validate:"required,dive"`
}

type scoreResponse struct {
	Score decimal.Decimal `json:"score"`
}

// HandleScore handles POST /v1/olympiad/score requests.
func (h *OlympiadHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.olympiad_score"
	var req olympiadScoreRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	level, err := olympiad.ParseLevel(req.Level)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	score, err := h.deps.OlympiadScore(r.Context(), level, req.Placement, req.StudentCount)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score: score})
}

// HandleTotal handles POST /v1/olympiad/total requests.
func (h *OlympiadHandler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	const op = "api.olympiad_total"
	var req olympiadTotalRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	for i := range req.Achievements {
		level, err := olympiad.ParseLevel(string(req.Achievements[i].Level))
		if err != nil {
			fail(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		req.Achievements[i].Level = level
	}
	total, err := h.deps.OlympiadTotal(r.Context(), req.Achievements)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score: total})
}

// HandleRules handles GET /v1/olympiad/rules requests.
func (h *OlympiadHandler) HandleRules(w http.ResponseWriter, r *http.Request) {
	const op = "api.olympiad_rules"
	groups, err := h.deps.OlympiadRules(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, groups)
}
