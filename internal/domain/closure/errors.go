package closure

import "errors"

var (
	ErrNoPeriods      = errors.New("at least one period end date is required")
	ErrNothingToClose = errors.New("no active payroll records for the selected periods")
	ErrPartialMove    = errors.New("archived row count does not match selected records")
)
