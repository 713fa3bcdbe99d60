package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("teacher rating not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrSnapshotLoad = errors.New("snapshot load failed")
	ErrDecode       = errors.New("decode configuration")
)
