// Package rating composes a teacher's overall rating from yearly component
// scores, configured weights and the growth bonus.
package rating

import (
	"fmt"
	"sort"

	"github.com/okian/edurating/internal/domain/growth"
	"github.com/okian/edurating/internal/domain/weights"
	"github.com/shopspring/decimal"
)

const scale = 2

var maxScore = decimal.NewFromInt(100)

// Config is the rating configuration of one institution.
type Config struct {
	InstitutionID string                   `json:"institution_id"`
	Rating        weights.RatingWeights    `json:"rating"`
	Components    weights.ComponentWeights `json:"components"`
	Years         weights.YearWeights      `json:"years"`
}

// DefaultConfig returns the configuration used when an institution has none.
func DefaultConfig() Config {
	return Config{
		Rating:     weights.DefaultRatingWeights(),
		Components: weights.DefaultComponentWeights(),
		Years:      weights.DefaultYearWeights(),
	}
}

// Validate checks every weight group sums to one.
func (c Config) Validate() error {
	if err := weights.Validate(c.Rating); err != nil {
		return fmt.Errorf("rating weights: %w", err)
	}
	if !c.Components.IsValid() {
		return fmt.Errorf("component weights: %w: got %s", weights.ErrWeightsDoNotSumToOne, c.Components.Total())
	}
	if !c.Years.IsValid() {
		return fmt.Errorf("year weights: %w: got %s", weights.ErrWeightsDoNotSumToOne, c.Years.Total())
	}
	return nil
}

// YearScores holds the component scores of one academic year, each 0..100.
type YearScores struct {
	Year        string          `json:"year" validate:"required"`
	Academic    decimal.Decimal `json:"academic" validate:"gte=0,lte=100"`
	Observation decimal.Decimal `json:"observation" validate:"gte=0,lte=100"`
	Assessment  decimal.Decimal `json:"assessment" validate:"gte=0,lte=100"`
	Certificate decimal.Decimal `json:"certificate" validate:"gte=0,lte=100"`
	Olympiad    decimal.Decimal `json:"olympiad" validate:"gte=0,lte=100"`
	Award       decimal.Decimal `json:"award" validate:"gte=0,lte=100"`
}

// Get returns the score of component c.
func (y YearScores) Get(c weights.Component) decimal.Decimal {
	switch c {
	case weights.Academic:
		return y.Academic
	case weights.Observation:
		return y.Observation
	case weights.Assessment:
		return y.Assessment
	case weights.Certificate:
		return y.Certificate
	case weights.Olympiad:
		return y.Olympiad
	case weights.Award:
		return y.Award
	}
	return decimal.Zero
}

// Sum adds up all component scores of the year.
func (y YearScores) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, c := range weights.Components() {
		total = total.Add(y.Get(c))
	}
	return total
}

// Result is a computed rating. Every figure is rounded to two decimals.
type Result struct {
	TeacherID     string                                `json:"teacher_id"`
	InstitutionID string                                `json:"institution_id,omitempty"`
	Components    map[weights.Component]decimal.Decimal `json:"components"`
	Overall       decimal.Decimal                       `json:"overall"`
	Growth        decimal.Decimal                       `json:"growth"`
	GrowthBonus   decimal.Decimal                       `json:"growth_bonus"`
	Final         decimal.Decimal                       `json:"final"`
	Years         []string                              `json:"years"`
}

// CheckYears reports ErrDuplicateYear when a year label appears twice.
func CheckYears(years []YearScores) error {
	seen := make(map[string]struct{}, len(years))
	for _, y := range years {
		if _, ok := seen[y.Year]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateYear, y.Year)
		}
		seen[y.Year] = struct{}{}
	}
	return nil
}

// Compose computes the rating of teacherID.
//
// Years are processed in ascending label order and years without weight are
// skipped. Growth compares the summed scores of the last included year with
// the first; fewer than two years means no growth.
func Compose(teacherID string, years []YearScores, cfg Config, rules growth.Rules) (Result, error) {
	ordered := make([]YearScores, len(years))
	copy(ordered, years)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Year < ordered[j].Year })

	totals := make(map[weights.Component]decimal.Decimal, len(weights.Components()))
	for _, c := range weights.Components() {
		totals[c] = decimal.Zero
	}

	included := make([]YearScores, 0, len(ordered))
	for i, y := range ordered {
		if i > 0 && ordered[i-1].Year == y.Year {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateYear, y.Year)
		}
		yw := cfg.Years.Weight(y.Year)
		if yw.IsZero() {
			continue
		}
		for _, c := range weights.Components() {
			totals[c] = totals[c].Add(y.Get(c).Mul(yw))
		}
		included = append(included, y)
	}

	overall := decimal.Zero
	for _, c := range weights.Components() {
		overall = overall.Add(totals[c].Mul(cfg.Components[c]))
	}

	delta := decimal.Zero
	if len(included) >= 2 {
		delta = included[len(included)-1].Sum().Sub(included[0].Sum())
	}
	bonus := growth.Resolve(delta, rules)

	res := Result{
		TeacherID:     teacherID,
		InstitutionID: cfg.InstitutionID,
		Components:    make(map[weights.Component]decimal.Decimal, len(totals)),
		Overall:       overall.Round(scale),
		Growth:        delta.Round(scale),
		GrowthBonus:   bonus.Round(scale),
		Final:         decimal.Min(overall.Add(bonus), maxScore).Round(scale),
		Years:         make([]string, 0, len(included)),
	}
	for c, v := range totals {
		res.Components[c] = v.Round(scale)
	}
	for _, y := range included {
		res.Years = append(res.Years, y.Year)
	}
	return res, nil
}
