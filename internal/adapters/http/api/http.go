// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/okian/edurating/internal/adapters/repository"
	service "github.com/okian/edurating/internal/app"
	"github.com/okian/edurating/internal/domain/approval"
	"github.com/okian/edurating/internal/domain/model"
	"github.com/okian/edurating/internal/domain/olympiad"
	"github.com/okian/edurating/internal/domain/types"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
)

// Dependencies required by HTTP handlers. *app.Service implements it.
type Dependencies interface {
	ResolveGrowth(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, bool, error)

	OlympiadScore(ctx context.Context, level olympiad.Level, placement, studentCount int) (decimal.Decimal, error)
	OlympiadTotal(ctx context.Context, achievements []olympiad.Achievement) (decimal.Decimal, error)
	OlympiadRules(ctx context.Context) (map[olympiad.Level][]olympiad.Rule, error)

	Workflow(ctx context.Context, workflowType string) (approval.Workflow, error)
	NextApprovalStep(ctx context.Context, workflowType string, currentLevel int, requiredOnly bool) (approval.Step, bool, error)
	ApprovalStatus(ctx context.Context, workflowType string, currentLevel int) (service.ApprovalStatus, error)
	Decide(ctx context.Context, workflowType string, currentLevel int, action approval.Action) (approval.Decision, error)

	ValidateWeights(ctx context.Context, w weights.RatingWeights) (decimal.Decimal, bool)

	// SubmitRating enqueues a job; service.ErrDuplicateJob and
	// service.ErrQueueFull report dedupe hits and backpressure.
	SubmitRating(ctx context.Context, job model.RatingJob) (string, error)
	Rating(ctx context.Context, teacherID string) (model.StoredRating, types.Entry, error)
	TopRatings(ctx context.Context, n int) ([]types.Entry, error)

	Reload(ctx context.Context) (*repository.Snapshot, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	growthHandler   *GrowthHandler
	olympiadHandler *OlympiadHandler
	approvalHandler *ApprovalHandler
	weightsHandler  *WeightsHandler
	ratingsHandler  *RatingsHandler
	adminHandler    *AdminHandler

	maxTopLimit    int
	allowedOrigins []string
	limiter        *limiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		maxTopLimit:    100,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	v := NewValidator()
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.growthHandler = NewGrowthHandler(deps, v)
	s.olympiadHandler = NewOlympiadHandler(deps, v)
	s.approvalHandler = NewApprovalHandler(deps, v)
	s.weightsHandler = NewWeightsHandler(deps, v)
	s.ratingsHandler = NewRatingsHandler(deps, v, s.maxTopLimit)
	s.adminHandler = NewAdminHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Post("/growth/resolve", MetricsMiddleware(s.growthHandler.HandleResolve, "growth_resolve"))

		r.Post("/olympiad/score", MetricsMiddleware(s.olympiadHandler.HandleScore, "olympiad_score"))
		r.Post("/olympiad/total", MetricsMiddleware(s.olympiadHandler.HandleTotal, "olympiad_total"))
		r.Get("/olympiad/rules", MetricsMiddleware(s.olympiadHandler.HandleRules, "olympiad_rules"))

		r.Get("/workflows/{type}", MetricsMiddleware(s.approvalHandler.HandleWorkflow, "workflow"))
		r.Post("/approvals/next", MetricsMiddleware(s.approvalHandler.HandleNext, "approval_next"))
		r.Post("/approvals/status", MetricsMiddleware(s.approvalHandler.HandleStatus, "approval_status"))
		r.Post("/approvals/decide", MetricsMiddleware(s.approvalHandler.HandleDecide, "approval_decide"))

		r.Post("/weights/validate", MetricsMiddleware(s.weightsHandler.HandleValidate, "weights_validate"))

		r.Post("/ratings/jobs", MetricsMiddleware(s.ratingsHandler.HandleSubmit, "rating_jobs"))
		r.Get("/ratings/top", MetricsMiddleware(s.ratingsHandler.HandleTop, "ratings_top"))
		r.Get("/ratings/{teacherID}", MetricsMiddleware(s.ratingsHandler.HandleGet, "rating"))

		r.Post("/admin/reload", MetricsMiddleware(s.adminHandler.HandleReload, "admin_reload"))
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
