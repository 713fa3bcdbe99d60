package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/edurating/internal/app"
	"github.com/okian/edurating/internal/domain/approval"
)

// ApprovalDependencies answers approval chain queries.
type ApprovalDependencies interface {
	Workflow(ctx context.Context, workflowType string) (approval.Workflow, error)
	NextApprovalStep(ctx context.Context, workflowType string, currentLevel int, requiredOnly bool) (approval.Step, bool, error)
	ApprovalStatus(ctx context.Context, workflowType string, currentLevel int) (service.ApprovalStatus, error)
	Decide(ctx context.Context, workflowType string, currentLevel int, action approval.Action) (approval.Decision, error)
}

// ApprovalHandler handles workflow and approval requests.
type ApprovalHandler struct {
	deps      ApprovalDependencies
	validator *Validator
}

// NewApprovalHandler creates a new approval handler.
func NewApprovalHandler(deps ApprovalDependencies, v *Validator) *ApprovalHandler {
	return &ApprovalHandler{deps: deps, validator: v}
}

type approvalRequest struct {
	WorkflowType string `json:"workflow_type" validate:"required"`
	CurrentLevel int    `json:"current_level" validate:"gte=0"`
	RequiredOnly bool   `json:"required_only"`
}

type decideRequest struct {
	WorkflowType string `json:"workflow_type" validate:"required"`
	CurrentLevel int    `json:"current_level" validate:"gte=0"`
	Action       string `json:"action" validate:"required"`
}

type workflowResponse struct {
	Type   string                    `json:"type"`
	Name   string                    `json:"name"`
	Status string                    `json:"status"`
	Chain  []approval.NormalizedStep `json:"chain"`
	Config approval.WorkflowConfig   `json:"config"`
}

type nextStepResponse struct {
	Found bool                     `json:"found"`
	Step  *approval.NormalizedStep `json:"step,omitempty"`
}

// HandleWorkflow handles GET /v1/workflows/{type} requests.
func (h *ApprovalHandler) HandleWorkflow(w http.ResponseWriter, r *http.Request) {
	const op = "api.workflow"
	wf, err := h.deps.Workflow(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, workflowResponse{
		Type:   wf.Type,
		Name:   wf.Name,
		Status: wf.Status,
		Chain:  approval.Normalize(wf.Chain),
		Config: wf.Config,
	})
}

// HandleNext handles POST /v1/approvals/next requests.
func (h *ApprovalHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	const op = "api.approval_next"
	var req approvalRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	step, ok, err := h.deps.NextApprovalStep(r.Context(), req.WorkflowType, req.CurrentLevel, req.RequiredOnly)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	resp := nextStepResponse{Found: ok}
	if ok {
		ns := approval.Normalize(approval.Chain{step})[0]
		resp.Step = &ns
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatus handles POST /v1/approvals/status requests.
func (h *ApprovalHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.approval_status"
	var req approvalRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	st, err := h.deps.ApprovalStatus(r.Context(), req.WorkflowType, req.CurrentLevel)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleDecide handles POST /v1/approvals/decide requests.
func (h *ApprovalHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	const op = "api.approval_decide"
	var req decideRequest
	if err := h.validator.decode(op, r, &req); err != nil {
		fail(w, err)
		return
	}
	action, err := approval.ParseAction(req.Action)
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	d, err := h.deps.Decide(r.Context(), req.WorkflowType, req.CurrentLevel, action)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}
