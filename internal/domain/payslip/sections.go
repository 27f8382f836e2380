package payslip

type lineItem struct {
	Label string
	Field string
}

type section struct {
	Title string
	Items []lineItem
	Total *lineItem
	// Only drawn when the record carries payment adjustments.
	AdjustmentsOnly bool
}

var payslipSections = []section{
	{
		Title: "Earnings",
		Items: []lineItem{
			{"Basic salary", "basic_salary"},
			{"Housing allowance", "housing_allowance"},
			{"Education allowance", "education_allowance"},
			{"Flight allowance", "flight_allowance"},
			{"General allowance", "general_allowance"},
			{"Gratuity / EOSB", "gratuity_eosb"},
			{"Other allowance", "other_allowance"},
		},
		Total: &lineItem{"Gross salary", "total_salary"},
	},
	{
		Title: "Variable pay",
		Items: []lineItem{
			{"Bonus", "bonus"},
			{"Overtime", "overtime"},
			{"Salary in arrears", "salary_in_arrears"},
		},
	},
	{
		Title: "Deductions",
		Items: []lineItem{
			{"Ad hoc deductions", "adhoc_deductions"},
			{"School fee deduction", "school_fee_deduction"},
		},
	},
	{
		Title: "Net salary",
		Total: &lineItem{"Net salary", "net_salary"},
	},
	{
		Title: "Payment adjustments",
		Items: []lineItem{
			{"Expense reimbursement", "expense_reimbursement"},
			{"Other payment adjustments", "other_payment_adjustments"},
		},
		Total:           &lineItem{"Total payment adjustments", "total_payment_adjustments"},
		AdjustmentsOnly: true,
	},
}

// visibleItems drops lines whose value is blank.
func (s section) visibleItems(fields Fields) []lineItem {
	var out []lineItem
	for _, item := range s.Items {
		if fields.Text(item.Field) != "" {
			out = append(out, item)
		}
	}
	return out
}

func (s section) visible(doc Document) bool {
	if s.AdjustmentsOnly && !doc.Record.HasPaymentAdjustments() {
		return false
	}
	if len(s.visibleItems(doc.Fields)) > 0 {
		return true
	}
	return s.Total != nil && doc.Fields.Text(s.Total.Field) != ""
}

// showNetPayment reports whether the final net payment block is drawn.
func showNetPayment(doc Document) bool {
	return doc.Record.NetPayment.Valid && !doc.Record.NetPayment.Decimal.IsZero()
}
