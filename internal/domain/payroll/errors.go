package payroll

import "errors"

var (
	ErrRecordNotFound = errors.New("payroll record not found")
	ErrNoIDs          = errors.New("no payroll record ids supplied")
)
