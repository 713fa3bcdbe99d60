package db

import "errors"

var (
	ErrUnsupportedDriver = errors.New("unsupported driver")
	ErrMissingDSN        = errors.New("missing dsn")
)
