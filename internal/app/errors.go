package service

import "errors"

var (
	ErrNoSource        = errors.New("no snapshot source configured")
	ErrNotReady        = errors.New("service not started")
	ErrInvalidSchedule = errors.New("invalid refresh schedule")
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrDuplicateJob    = errors.New("duplicate rating job")
	ErrQueueFull       = errors.New("rating queue full")
)
