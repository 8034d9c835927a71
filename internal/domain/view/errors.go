package view

import "errors"

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotHideable   = errors.New("column cannot be hidden")
)
