package imports

import "payrolladmin/internal/domain/payroll"

// RowError points at one problem in an uploaded file. Row numbers are
// 1-based and count the header as row 1.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Result struct {
	Valid     []payroll.Record `json:"-"`
	Errors    []RowError       `json:"errors"`
	TotalRows int              `json:"totalRows"`

	// data row number of each entry in Valid
	validRows []int
}

func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// row is the validated shape of one data row.
type row struct {
	EmployeeID string `csv:"employee_id" validate:"required,uuid"`
	EmployerID string `csv:"employer_id" validate:"required,uuid"`
	PeriodFrom string `csv:"pay_period_from" validate:"required"`
	PeriodTo   string `csv:"pay_period_to" validate:"required"`
	Currency   string `csv:"currency" validate:"omitempty,iso4217"`
	IBAN       string `csv:"iban" validate:"omitempty,iban"`
	Email      string `csv:"employee_email" validate:"omitempty,email"`
	BankName   string `csv:"bank_name" validate:"omitempty,max=120"`
}
