// Package olympiad scores olympiad achievements against configured placement rules.
package olympiad

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Level is the competition tier of an olympiad.
type Level string

// Known olympiad levels, lowest tier first.
const (
	LevelRayon         Level = "rayon"
	LevelRegion        Level = "region"
	LevelCountry       Level = "country"
	LevelInternational Level = "international"
)

var levelOrder = map[Level]int{
	LevelRayon:         0,
	LevelRegion:        1,
	LevelCountry:       2,
	LevelInternational: 3,
}

// achievementCap bounds the summed olympiad component.
var achievementCap = decimal.NewFromInt(100)

// Levels returns all known levels in canonical order.
func Levels() []Level {
	return []Level{LevelRayon, LevelRegion, LevelCountry, LevelInternational}
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelOrder[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levelOrder[l]
	return ok
}

// Rule is one row of the olympiad scoring table.
type Rule struct {
	Level        Level           `json:"level"`
	Placement    int             `json:"placement"`
	BaseScore    decimal.Decimal `json:"base_score"`
	StudentBonus decimal.Decimal `json:"student_bonus"`
	Active       bool            `json:"active"`
}

// Rules is a read-only set of olympiad rules.
type Rules []Rule

// Find returns the first active rule for (level, placement).
func (rs Rules) Find(level Level, placement int) (Rule, bool) {
	for _, r := range rs {
		if r.Active && r.Level == level && r.Placement == placement {
			return r, true
		}
	}
	return Rule{}, false
}

// CalculateScore returns the achievement score for a placement.
//
// A zero studentCount means the count was not given and is treated as one.
// The student bonus only applies to students beyond the first. Unknown
// (level, placement) pairs score zero. Negative counts or placements are
// rejected with ErrInvalidArgument.
func CalculateScore(level Level, placement, studentCount int, rules Rules) (decimal.Decimal, error) {
	if placement < 0 {
		return decimal.Zero, fmt.Errorf("%w: placement %d", ErrInvalidArgument, placement)
	}
	if studentCount < 0 {
		return decimal.Zero, fmt.Errorf("%w: student count %d", ErrInvalidArgument, studentCount)
	}
	if studentCount == 0 {
		studentCount = 1
	}

	rule, ok := rules.Find(level, placement)
	if !ok {
		return decimal.Zero, nil
	}

	extra := decimal.NewFromInt(int64(studentCount - 1))
	return rule.BaseScore.Add(rule.StudentBonus.Mul(extra)), nil
}

// GroupByLevel returns active rules keyed by level, each group ordered by placement.
func GroupByLevel(rules Rules) map[Level][]Rule {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		li, lj := levelRank(active[i].Level), levelRank(active[j].Level)
		if li != lj {
			return li < lj
		}
		return active[i].Placement < active[j].Placement
	})

	groups := make(map[Level][]Rule)
	for _, r := range active {
		groups[r.Level] = append(groups[r.Level], r)
	}
	return groups
}

// unknown levels sort after the known ones
func levelRank(l Level) int {
	if rank, ok := levelOrder[l]; ok {
		return rank
	}
	return len(levelOrder)
}

// Achievement is a single olympiad result credited to a teacher.
type Achievement struct {
	Level        Level `json:"level" validate:"required"`
	Placement    int   `json:"placement" validate:"gte=0"`
	StudentCount int   `json:"student_count" validate:"gte=0"`
}

// AchievementTotal sums the scores of achievements, capped at 100 and
// rounded to two decimals.
func AchievementTotal(achievements []Achievement, rules Rules) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range achievements {
		score, err := CalculateScore(a.Level, a.Placement, a.StudentCount, rules)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(score)
	}
	return decimal.Min(total.Round(2), achievementCap), nil
}
