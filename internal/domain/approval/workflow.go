package approval

import "fmt"

// WorkflowConfig holds the typed workflow options stored next to a chain.
// Only RequireAllLevels affects the engine; AllowSkipLevels and
// AutoApproveAfter are stored and returned unchanged for callers.
type WorkflowConfig struct {
	RequireAllLevels bool   `json:"require_all_levels" yaml:"require_all_levels"`
	AllowSkipLevels  bool   `json:"allow_skip_levels" yaml:"allow_skip_levels"`
	AutoApproveAfter string `json:"auto_approve_after,omitempty" yaml:"auto_approve_after,omitempty"`
}

// DefaultWorkflowConfig returns the options applied when a workflow stores none.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		RequireAllLevels: false,
		AllowSkipLevels:  true,
	}
}

// Workflow statuses.
const (
	WorkflowActive   = "active"
	WorkflowInactive = "inactive"
	WorkflowDraft    = "draft"
)

// Workflow is a named approval chain for one kind of request.
type Workflow struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Status string         `json:"status"`
	Chain  Chain          `json:"chain"`
	Config WorkflowConfig `json:"config"`
}

// NextRequiredStep returns the next step an approver must act on.
//
// Steps are scanned in stored order, skipping levels at or below
// currentLevel. Optional steps are skipped unless the workflow requires
// all levels.
func NextRequiredStep(chain Chain, cfg WorkflowConfig, currentLevel int) (Step, bool) {
	for _, s := range chain {
		if s.Level <= currentLevel {
			continue
		}
		if cfg.RequireAllLevels || s.IsRequired() {
			return s, true
		}
	}
	return Step{}, false
}

// Action is an approver's decision on a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionRevise  Action = "revise"
)

// Request statuses produced by Decide.
const (
	StatusInProgress        = "in_progress"
	StatusApproved          = "approved"
	StatusRejected          = "rejected"
	StatusRevisionRequested = "revision_requested"
)

// Decision is the outcome of applying an action at currentLevel.
type Decision struct {
	Action    Action `json:"action"`
	Status    string `json:"status"`
	FromLevel int    `json:"from_level"`
	Level     int    `json:"level"`
	// ActedStep is the step whose approver took the action, if any.
	ActedStep *Step `json:"acted_step,omitempty"`
	// Pending is the step awaiting approval after the decision.
	Pending *Step `json:"pending,omitempty"`
}

// Decide computes the transition for action without mutating anything.
func Decide(wf Workflow, currentLevel int, action Action) (Decision, error) {
	d := Decision{Action: action, FromLevel: currentLevel, Level: currentLevel}

	switch action {
	case ActionApprove:
		if IsFullyApproved(wf.Chain, currentLevel) {
			return d, fmt.Errorf("%w: level %d", ErrAlreadyCompleted, currentLevel)
		}
		step, ok := actingStep(wf, currentLevel)
		if !ok {
			return d, fmt.Errorf("%w: no step above level %d", ErrAlreadyCompleted, currentLevel)
		}
		d.ActedStep = &step
		d.Level = step.Level
		if IsFullyApproved(wf.Chain, d.Level) {
			d.Status = StatusApproved
			return d, nil
		}
		d.Status = StatusInProgress
		if next, ok := actingStep(wf, d.Level); ok {
			d.Pending = &next
		}
		return d, nil

	case ActionReject:
		if step, ok := actingStep(wf, currentLevel); ok {
			d.ActedStep = &step
		}
		d.Status = StatusRejected
		return d, nil

	case ActionRevise:
		if step, ok := actingStep(wf, currentLevel); ok {
			d.ActedStep = &step
		}
		d.Status = StatusRevisionRequested
		d.Level = 0
		if first, ok := actingStep(wf, 0); ok {
			d.Pending = &first
		}
		return d, nil
	}

	return d, fmt.Errorf("%w: %q", ErrInvalidAction, action)
}

func actingStep(wf Workflow, level int) (Step, bool) {
	if wf.Config.RequireAllLevels {
		return NextStep(wf.Chain, level)
	}
	return NextRequiredStep(wf.Chain, wf.Config, level)
}
