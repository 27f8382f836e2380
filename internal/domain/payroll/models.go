package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one employee's payroll figures for one pay period.
// Monetary fields are optional; a null amount is omitted from payslips.
type Record struct {
	ID            string `json:"id"`
	TenantID      string `json:"-"`
	EmployeeID    string `json:"employeeId"`
	EmployerID    string `json:"employerId"`
	EmployeeName  string `json:"employeeName"`
	EmployerName  string `json:"employerName"`
	EmployeeEmail string `json:"employeeEmail,omitempty"`
	ReviewerEmail string `json:"reviewerEmail,omitempty"`

	PeriodFrom time.Time `json:"payPeriodFrom"`
	PeriodTo   time.Time `json:"payPeriodTo"`

	BasicSalary        decimal.NullDecimal `json:"basicSalary"`
	HousingAllowance   decimal.NullDecimal `json:"housingAllowance"`
	EducationAllowance decimal.NullDecimal `json:"educationAllowance"`
	FlightAllowance    decimal.NullDecimal `json:"flightAllowance"`
	GeneralAllowance   decimal.NullDecimal `json:"generalAllowance"`
	GratuityEOSB       decimal.NullDecimal `json:"gratuityEosb"`
	OtherAllowance     decimal.NullDecimal `json:"otherAllowance"`
	TotalSalary        decimal.NullDecimal `json:"totalSalary"`

	Bonus           decimal.NullDecimal `json:"bonus"`
	Overtime        decimal.NullDecimal `json:"overtime"`
	SalaryInArrears decimal.NullDecimal `json:"salaryInArrears"`

	AdhocDeductions    decimal.NullDecimal `json:"adhocDeductions"`
	SchoolFeeDeduction decimal.NullDecimal `json:"schoolFeeDeduction"`
	NetSalary          decimal.NullDecimal `json:"netSalary"`

	ExpenseReimbursement    decimal.NullDecimal `json:"expenseReimbursement"`
	OtherPaymentAdjustments decimal.NullDecimal `json:"otherPaymentAdjustments"`
	TotalPaymentAdjustments decimal.NullDecimal `json:"totalPaymentAdjustments"`
	NetPayment              decimal.NullDecimal `json:"netPayment"`

	Currency string `json:"currency"`
	BankName string `json:"bankName,omitempty"`
	IBAN     string `json:"iban,omitempty"`

	PayslipToken       string     `json:"payslipToken,omitempty"`
	PayslipURL         string     `json:"payslipUrl,omitempty"`
	PayslipMethod      string     `json:"payslipMethod,omitempty"`
	PayslipGeneratedAt *time.Time `json:"payslipGeneratedAt,omitempty"`
	DeletedAt          *time.Time `json:"deletedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`

	LastSendStatus string     `json:"lastSendStatus,omitempty"`
	LastSentAt     *time.Time `json:"lastSentAt,omitempty"`
}

// moneyRefs returns pointers to the monetary fields in MoneyColumns order.
func (r *Record) moneyRefs() []*decimal.NullDecimal {
	return []*decimal.NullDecimal{
		&r.BasicSalary,
		&r.HousingAllowance,
		&r.EducationAllowance,
		&r.FlightAllowance,
		&r.GeneralAllowance,
		&r.GratuityEOSB,
		&r.OtherAllowance,
		&r.TotalSalary,
		&r.Bonus,
		&r.Overtime,
		&r.SalaryInArrears,
		&r.AdhocDeductions,
		&r.SchoolFeeDeduction,
		&r.NetSalary,
		&r.ExpenseReimbursement,
		&r.OtherPaymentAdjustments,
		&r.TotalPaymentAdjustments,
		&r.NetPayment,
	}
}

// Amounts maps each monetary column name to its value.
func (r Record) Amounts() map[string]decimal.NullDecimal {
	refs := r.moneyRefs()
	out := make(map[string]decimal.NullDecimal, len(refs))
	for i, col := range MoneyColumns {
		out[col] = *refs[i]
	}
	return out
}

// SetAmount assigns a monetary column by name. Unknown names return false.
func (r *Record) SetAmount(column string, value decimal.NullDecimal) bool {
	refs := r.moneyRefs()
	for i, col := range MoneyColumns {
		if col == column {
			*refs[i] = value
			return true
		}
	}
	return false
}

func (r Record) HasPaymentAdjustments() bool {
	return r.TotalPaymentAdjustments.Valid && !r.TotalPaymentAdjustments.Decimal.IsZero()
}

// PayableAmount is the amount closure totals are built from.
func (r Record) PayableAmount() decimal.Decimal {
	if r.NetPayment.Valid {
		return r.NetPayment.Decimal
	}
	if r.NetSalary.Valid {
		return r.NetSalary.Decimal
	}
	return decimal.Zero
}

type Artifact struct {
	Token       string
	URL         string
	Method      string
	GeneratedAt time.Time
}

type ListFilter struct {
	Limit          int
	Offset         int
	SortBy         string
	SortDir        string
	Search         string
	Employers      []string
	PeriodEnds     []time.Time
	Currency       string
	IDs            []string
	IncludeDeleted bool
}
