// Package weights validates the coefficients used to build composite ratings.
package weights

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	one       = decimal.NewFromInt(1)
	tolerance = decimal.RequireFromString("0.01")
)

// RatingWeights splits a rating between task, survey and manual inputs.
type RatingWeights struct {
	TaskWeight   decimal.Decimal `json:"task_weight"`
	SurveyWeight decimal.Decimal `json:"survey_weight"`
	ManualWeight decimal.Decimal `json:"manual_weight"`
}

// DefaultRatingWeights returns the service-wide fallback weights.
func DefaultRatingWeights() RatingWeights {
	return RatingWeights{
		TaskWeight:   decimal.RequireFromString("0.40"),
		SurveyWeight: decimal.RequireFromString("0.60"),
		ManualWeight: decimal.Zero,
	}
}

// TotalWeight returns the sum of the three weights.
func TotalWeight(w RatingWeights) decimal.Decimal {
	return w.TaskWeight.Add(w.SurveyWeight).Add(w.ManualWeight)
}

// IsValid reports whether the weights sum to one within 0.01.
func IsValid(w RatingWeights) bool {
	return sumsToOne(TotalWeight(w))
}

// Validate returns ErrWeightsDoNotSumToOne when IsValid is false.
func Validate(w RatingWeights) error {
	if total := TotalWeight(w); !sumsToOne(total) {
		return fmt.Errorf("%w: got %s", ErrWeightsDoNotSumToOne, total.String())
	}
	return nil
}

func sumsToOne(total decimal.Decimal) bool {
	return total.Sub(one).Abs().LessThan(tolerance)
}

// Component names a rating component.
type Component string

const (
	Academic    Component = "academic"
	Observation Component = "observation"
	Assessment  Component = "assessment"
	Certificate Component = "certificate"
	Olympiad    Component = "olympiad"
	Award       Component = "award"
)

// Components returns every component in reporting order.
func Components() []Component {
	return []Component{Academic, Observation, Assessment, Certificate, Olympiad, Award}
}

// ComponentWeights maps each component to its share of the overall score.
type ComponentWeights map[Component]decimal.Decimal

// DefaultComponentWeights returns the default component split.
func DefaultComponentWeights() ComponentWeights {
	return ComponentWeights{
		Academic:    decimal.RequireFromString("0.25"),
		Observation: decimal.RequireFromString("0.20"),
		Assessment:  decimal.RequireFromString("0.20"),
		Certificate: decimal.RequireFromString("0.15"),
		Olympiad:    decimal.RequireFromString("0.10"),
		Award:       decimal.RequireFromString("0.10"),
	}
}

// Total sums all component weights.
func (cw ComponentWeights) Total() decimal.Decimal {
	total := decimal.Zero
	for _, w := range cw {
		total = total.Add(w)
	}
	return total
}

// IsValid applies the same tolerance as rating weights.
func (cw ComponentWeights) IsValid() bool {
	return sumsToOne(cw.Total())
}

// YearWeights maps an academic year label such as "2023-2024" to its weight.
type YearWeights map[string]decimal.Decimal

// DefaultYearWeights returns the default three-year split.
func DefaultYearWeights() YearWeights {
	return YearWeights{
		"2022-2023": decimal.RequireFromString("0.25"),
		"2023-2024": decimal.RequireFromString("0.30"),
		"2024-2025": decimal.RequireFromString("0.45"),
	}
}

// Years returns the year labels in ascending order.
func (yw YearWeights) Years() []string {
	years := make([]string, 0, len(yw))
	for y := range yw {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// Weight returns the weight of year, zero when absent.
func (yw YearWeights) Weight(year string) decimal.Decimal {
	if w, ok := yw[year]; ok {
		return w
	}
	return decimal.Zero
}

// Total sums all year weights.
func (yw YearWeights) Total() decimal.Decimal {
	total := decimal.Zero
	for _, w := range yw {
		total = total.Add(w)
	}
	return total
}

// IsValid applies the same tolerance as rating weights.
func (yw YearWeights) IsValid() bool {
	return sumsToOne(yw.Total())
}
