package repository

import (
	"time"

	"github.com/okian/edurating/internal/domain/rating"
	"github.com/okian/edurating/pkg/logger"
)

// SnapshotOption configures a SnapshotStore.
type SnapshotOption func(*SnapshotStore)

// WithDefaultRating sets the configuration used for institutions without one.
func WithDefaultRating(cfg rating.Config) SnapshotOption {
	return func(s *SnapshotStore) {
		s.defaults = cfg
	}
}

// WithClock overrides time.Now for load timestamps.
func WithClock(now func() time.Time) SnapshotOption {
	return func(s *SnapshotStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSnapshotLogger sets the store logger.
func WithSnapshotLogger(l logger.Logger) SnapshotOption {
	return func(s *SnapshotStore) {
		if l != nil {
			s.logger = l
		}
	}
}
