package model

import "errors"

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
