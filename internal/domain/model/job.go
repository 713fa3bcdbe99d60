// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/edurating/internal/domain/rating"
)

// RatingJob asks the worker pool to compute one teacher's rating.
type RatingJob struct {
	JobID         string              // idempotency key
	TeacherID     string              // rated teacher
	InstitutionID string              // selects the rating config; empty uses defaults
	Years         []rating.YearScores // yearly component scores
	SubmittedAt   time.Time
}

// StoredRating is a computed rating as kept by the results store.
type StoredRating struct {
	JobID      string        `json:"job_id"`
	Result     rating.Result `json:"result"`
	SnapshotID string        `json:"snapshot_id"`
	ComputedAt time.Time     `json:"computed_at"`
}
