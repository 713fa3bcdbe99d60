package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/edurating/internal/app"
	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/internal/domain/types"
)

const defaultTopLimit = 10

// RatingsDependencies accepts rating jobs and serves computed ratings.
type RatingsDependencies interface {
	SubmitRating(ctx context.Context, job model.RatingJob) (string, error)
	Rating(ctx context.Context, teacherID string) (model.StoredRating, types.Entry, error)
	TopRatings(ctx context.Context, n int) ([]types.Entry, error)
}

// RatingsHandler handles rating job and ranking requests.
type RatingsHandler struct {
	deps        RatingsDependencies
	validator   *Validator
	maxTopLimit int
}

// NewRatingsHandler creates a new ratings handler.
func NewRatingsHandler(deps RatingsDependencies, v *Validator, maxTopLimit int) *RatingsHandler {
	return &RatingsHandler{deps: deps, validator: v, maxTopLimit: maxTopLimit}
}

type ratingJobRequest struct {
	JobID         string              `json:"job_id" validate:"omitempty,max=128"`
	TeacherID     string              `json:"teacher_id" validate:"required,max=128"`
	InstitutionID string              `json:"institution_id" validate:"omitempty,max=128"`
	Years         []rating.YearScores `json:"years" validate:"required,min=1,unique=Year,dive"`
}

type ackResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
}

type ratingResponse struct {
	Rating model.StoredRating `json:"rating"`
	Rank   types.Entry        `json:"rank"`
}

// HandleSubmit handles POST /v1/ratings/jobs requests.
func (h *RatingsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_rating"
	var req ratingJobRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}

	id, err := h.deps.SubmitRating(r.Context(), model.RatingJob{
		JobID:         req.JobID,
		TeacherID:     req.TeacherID,
		InstitutionID: req.InstitutionID,
		Years:         req.Years,
	})
	switch {
	case errors.Is(err, service.ErrDuplicateJob):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", JobID: id, Duplicate: true})
	case errors.Is(err, service.ErrQueueFull):
		fail(w, WrapKind(op, ErrBackpressure, err))
	case err != nil:
		fail(w, Wrap(op, err))
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: id})
	}
}

// HandleTop handles GET /v1/ratings/top?limit=N requests.
func (h *RatingsHandler) HandleTop(w http.ResponseWriter, r *http.Request) {
	const op = "api.ratings_top"
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(w, WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}
	if limit > h.maxTopLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded",
			WrapKind(op, ErrBadRequest, fmt.Errorf("limit %d exceeds maximum %d", limit, h.maxTopLimit)))
		return
	}

	entries, err := h.deps.TopRatings(r.Context(), limit)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGet handles GET /v1/ratings/{teacherID} requests.
func (h *RatingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.rating"
	stored, entry, err := h.deps.Rating(r.Context(), chi.URLParam(r, "teacherID"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{Rating: stored, Rank: entry})
}
