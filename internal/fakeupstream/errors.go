package fakeupstream

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyResolved = errors.New("audit report already resolved")
	ErrInvalidInput    = errors.New("invalid input")
)
