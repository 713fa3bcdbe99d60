// Package types contains response types shared by the service and the API.
package types

import "github.com/shopspring/decimal"

// Entry is one row of the teacher ranking.
type Entry struct {
	Rank          int             `json:"rank"`
	TeacherID     string          `json:"teacher_id"`
	InstitutionID string          `json:"institution_id,omitempty"`
	Final         decimal.Decimal `json:"final"`
	GrowthBonus   decimal.Decimal `json:"growth_bonus"`
}
