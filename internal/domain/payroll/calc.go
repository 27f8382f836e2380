package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TotalsWarning reports a stored total that disagrees with its components.
type TotalsWarning struct {
	Code     string          `json:"code"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

func (w TotalsWarning) String() string {
	return fmt.Sprintf("%s: expected %s, stored %s", w.Code, w.Expected.StringFixed(2), w.Actual.StringFixed(2))
}

// CheckTotals recomputes the derived totals of r and reports mismatches.
// Stored totals stay authoritative for rendering; a total is only checked
// when it and at least one of its components are present.
func CheckTotals(r Record) []TotalsWarning {
	var out []TotalsWarning

	check := func(code string, stored decimal.NullDecimal, expected decimal.Decimal, anyComponent bool) {
		if !stored.Valid || !anyComponent {
			return
		}
		if !stored.Decimal.Round(2).Equal(expected.Round(2)) {
			out = append(out, TotalsWarning{Code: code, Expected: expected.Round(2), Actual: stored.Decimal})
		}
	}

	gross, anyGross := Sum(r.BasicSalary, r.HousingAllowance, r.EducationAllowance, r.FlightAllowance, r.GeneralAllowance, r.GratuityEOSB, r.OtherAllowance)
	check(WarningGrossMismatch, r.TotalSalary, gross, anyGross)

	if r.TotalSalary.Valid {
		additions, _ := Sum(r.Bonus, r.Overtime, r.SalaryInArrears)
		deductions, _ := Sum(r.AdhocDeductions, r.SchoolFeeDeduction)
		check(WarningNetSalaryMismatch, r.NetSalary, r.TotalSalary.Decimal.Add(additions).Sub(deductions), true)
	}

	adjustments, anyAdjustment := Sum(r.ExpenseReimbursement, r.OtherPaymentAdjustments)
	check(WarningAdjustmentsMismatch, r.TotalPaymentAdjustments, adjustments, anyAdjustment)

	if r.NetSalary.Valid {
		adj := decimal.Zero
		if r.TotalPaymentAdjustments.Valid {
			adj = r.TotalPaymentAdjustments.Decimal
		}
		check(WarningNetPaymentMismatch, r.NetPayment, r.NetSalary.Decimal.Add(adj), true)
	}

	return out
}

// Sum adds the present values and reports whether any value was present.
func Sum(values ...decimal.NullDecimal) (decimal.Decimal, bool) {
	total := decimal.Zero
	present := false
	for _, v := range values {
		if !v.Valid {
			continue
		}
		present = true
		total = total.Add(v.Decimal)
	}
	return total, present
}
