package repository

import "errors"

// Sentinel kinds for score store errors.
var (
	ErrUnknownStream = errors.New("unknown stream")
	ErrClosed        = errors.New("store closed")
	ErrInvalidSeed   = errors.New("invalid seed file")
)
