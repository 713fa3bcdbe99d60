package olympiad

import "errors"

// Sentinel kinds for olympiad scoring errors.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownLevel    = errors.New("unknown olympiad level")
)
