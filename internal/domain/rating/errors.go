package rating

import "errors"

// ErrDuplicateYear is returned when the same academic year is scored twice.
var ErrDuplicateYear = errors.New("duplicate academic year")
