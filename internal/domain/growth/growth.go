// Package growth resolves growth bonuses from configured improvement thresholds.
package growth

import (
	"github.com/shopspring/decimal"
)

const maxBonus = 5

// MaxBonus returns the fixed cap applied to every resolved bonus regardless
// of configuration.
func MaxBonus() decimal.Decimal {
	return decimal.NewFromInt(maxBonus)
}

// Rule maps an improvement range to a bonus score.
type Rule struct {
	// ThresholdMin is the inclusive lower bound of the range.
	ThresholdMin decimal.Decimal `json:"threshold_min"`
	// ThresholdMax is the inclusive upper bound; invalid means unbounded.
	ThresholdMax decimal.NullDecimal `json:"threshold_max"`
	BonusScore   decimal.Decimal     `json:"bonus_score"`
	Active       bool                `json:"active"`
}

// Unbounded reports whether the rule has no upper bound.
func (r Rule) Unbounded() bool {
	return !r.ThresholdMax.Valid
}

// Contains reports whether x falls inside [ThresholdMin, ThresholdMax].
func (r Rule) Contains(x decimal.Decimal) bool {
	if r.ThresholdMin.GreaterThan(x) {
		return false
	}
	return r.Unbounded() || r.ThresholdMax.Decimal.GreaterThanOrEqual(x)
}

// Rules is a read-only set of growth bonus rules.
type Rules []Rule

// Active returns the active rules in input order.
func (rs Rules) Active() Rules {
	out := make(Rules, 0, len(rs))
	for _, r := range rs {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// Resolve returns the bonus earned for growthAmount.
//
// Among active rules containing growthAmount the one with the greatest
// ThresholdMin wins; ties go to the rule that appears first. The result is
// capped at MaxBonus(). Non-positive growth never earns a bonus.
func Resolve(growthAmount decimal.Decimal, rules Rules) decimal.Decimal {
	if !growthAmount.IsPositive() {
		return decimal.Zero
	}

	var (
		best  Rule
		found bool
	)
	for _, r := range rules {
		if !r.Active || !r.Contains(growthAmount) {
			continue
		}
		if !found || r.ThresholdMin.GreaterThan(best.ThresholdMin) {
			best = r
			found = true
		}
	}
	if !found {
		return decimal.Zero
	}
	return decimal.Min(best.BonusScore, MaxBonus())
}

// QualifiesForBonus reports whether any active rule starts at or below
// growthAmount. Upper bounds and the cap are ignored.
func QualifiesForBonus(growthAmount decimal.Decimal, rules Rules) bool {
	for _, r := range rules {
		if r.Active && r.ThresholdMin.LessThanOrEqual(growthAmount) {
			return true
		}
	}
	return false
}
