package approval

import "errors"

var (
	ErrInvalidLevel     = errors.New("invalid approval level")
	ErrDuplicateLevel   = errors.New("duplicate approval level")
	ErrInvalidAction    = errors.New("invalid approval action")
	ErrAlreadyCompleted = errors.New("approval already completed")
)
