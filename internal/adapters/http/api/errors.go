package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNoFlusher    = errors.New("streaming unsupported")
	ErrUnknownTable = errors.New("unknown table")
)
