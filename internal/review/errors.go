package review

import "errors"

var (
	ErrNotOpen         = errors.New("review dialog is not open")
	ErrBusy            = errors.New("an action is already in progress")
	ErrAlreadyResolved = errors.New("audit report is already resolved")
	ErrReportNotFound  = errors.New("audit report not found")
	ErrSessionNotFound = errors.New("review session not found")
)
