// Package approval walks ordered approval chains to find the next approver
// and the completion state of a request.
//
// The engine only answers queries. The caller owns the current level and
// persists whatever Decide returns.
package approval

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Step is one approver position in a chain as stored in configuration.
type Step struct {
	Level       int     `json:"level" yaml:"level" koanf:"level"`
	Role        string  `json:"role" yaml:"role" koanf:"role"`
	Required    *bool   `json:"required,omitempty" yaml:"required,omitempty" koanf:"required"`
	Title       string  `json:"title,omitempty" yaml:"title,omitempty" koanf:"title"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty" koanf:"description"`
}

// IsRequired reports whether the step must be passed; unset means required.
func (s Step) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// NormalizedStep is a Step with every default filled in.
type NormalizedStep struct {
	Level       int     `json:"level"`
	Role        string  `json:"role"`
	Required    bool    `json:"required"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// Chain is an ordered sequence of steps. It is not required to be sorted by level.
type Chain []Step

// Validate rejects chains with non-positive or duplicate levels.
func (c Chain) Validate() error {
	seen := make(map[int]struct{}, len(c))
	for i, s := range c {
		if s.Level <= 0 {
			return fmt.Errorf("step %d: %w: %d", i, ErrInvalidLevel, s.Level)
		}
		if _, dup := seen[s.Level]; dup {
			return fmt.Errorf("step %d: %w: %d", i, ErrDuplicateLevel, s.Level)
		}
		seen[s.Level] = struct{}{}
	}
	return nil
}

// NextStep returns the first step, in stored chain order, whose level is
// greater than currentLevel.
//
// The chain is scanned as stored and never sorted: for [1, 3, 2] at level 1
// the step at level 3 is returned.
func NextStep(chain Chain, currentLevel int) (Step, bool) {
	for _, s := range chain {
		if s.Level > currentLevel {
			return s, true
		}
	}
	return Step{}, false
}

// MaxRequiredLevel returns the highest level among required steps.
// ok is false when no step is required.
func MaxRequiredLevel(chain Chain) (level int, ok bool) {
	for _, s := range chain {
		if !s.IsRequired() {
			continue
		}
		if !ok || s.Level > level {
			level = s.Level
			ok = true
		}
	}
	return level, ok
}

// IsFullyApproved reports whether currentLevel has reached the highest
// required level. A chain without required steps is vacuously approved.
func IsFullyApproved(chain Chain, currentLevel int) bool {
	maxRequired, ok := MaxRequiredLevel(chain)
	if !ok {
		return true
	}
	return currentLevel >= maxRequired
}

// Normalize fills step defaults, preserving chain order.
func Normalize(chain Chain) []NormalizedStep {
	out := make([]NormalizedStep, 0, len(chain))
	for _, s := range chain {
		title := s.Title
		if title == "" {
			title = capitalize(s.Role)
		}
		out = append(out, NormalizedStep{
			Level:       s.Level,
			Role:        s.Role,
			Required:    s.IsRequired(),
			Title:       title,
			Description: s.Description,
		})
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// State is the progress of a request through its chain.
type State string

const (
	StateNotStarted        State = "not_started"
	StatePartiallyApproved State = "partially_approved"
	StateFullyApproved     State = "fully_approved"
)

// Classify maps currentLevel to its State.
//
// Full approval takes precedence, so a chain with no required steps is
// fully approved even at level 0.
func Classify(chain Chain, currentLevel int) State {
	switch {
	case IsFullyApproved(chain, currentLevel):
		return StateFullyApproved
	case currentLevel <= 0:
		return StateNotStarted
	default:
		return StatePartiallyApproved
	}
}

// ParseAction parses an action name case-insensitively.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionApprove, ActionReject, ActionRevise:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}
