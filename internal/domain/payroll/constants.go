package payroll

const DefaultCurrency = "AED"

// MoneyColumns lists the monetary columns of payroll_records in the order
// used by scans and inserts.
var MoneyColumns = []string{
	"basic_salary",
	"housing_allowance",
	"education_allowance",
	"flight_allowance",
	"general_allowance",
	"gratuity_eosb",
	"other_allowance",
	"total_salary",
	"bonus",
	"overtime",
	"salary_in_arrears",
	"adhoc_deductions",
	"school_fee_deduction",
	"net_salary",
	"expense_reimbursement",
	"other_payment_adjustments",
	"total_payment_adjustments",
	"net_payment",
}

const (
	WarningGrossMismatch       = "gross_mismatch"
	WarningNetSalaryMismatch   = "net_salary_mismatch"
	WarningAdjustmentsMismatch = "adjustments_mismatch"
	WarningNetPaymentMismatch  = "net_payment_mismatch"
)

var sortColumns = map[string]string{
	"payPeriodTo":   "r.pay_period_to",
	"payPeriodFrom": "r.pay_period_from",
	"employeeName":  "employee_name",
	"employerName":  "employer_name",
	"netPayment":    "r.net_payment",
	"netSalary":     "r.net_salary",
	"createdAt":     "r.created_at",
	"generatedAt":   "r.payslip_generated_at",
}

const (
	pgUndefinedColumn = "42703"
)
