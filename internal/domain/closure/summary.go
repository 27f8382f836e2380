package closure

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payrolladmin/internal/domain/payroll"
)

// Summarize aggregates the moved records. Period end dates keep the order
// they were requested in; employer names are sorted.
func Summarize(records []payroll.Record, periodEnds []time.Time) Summary {
	summary := Summary{
		TotalRecordsMoved: len(records),
		TotalAmount:       decimal.Zero,
		EmployerCounts:    map[string]int{},
	}

	periodIndex := map[string]int{}
	for _, d := range periodEnds {
		key := d.Format(DateLayout)
		if _, ok := periodIndex[key]; ok {
			continue
		}
		periodIndex[key] = len(summary.Periods)
		summary.PeriodEndDates = append(summary.PeriodEndDates, key)
		summary.Periods = append(summary.Periods, PeriodTotal{PeriodEnd: key, TotalAmount: decimal.Zero})
	}

	for _, r := range records {
		amount := r.PayableAmount()
		summary.TotalAmount = summary.TotalAmount.Add(amount)

		employer := r.EmployerName
		if employer == "" {
			employer = r.EmployerID
		}
		summary.EmployerCounts[employer]++

		key := r.PeriodTo.Format(DateLayout)
		idx, ok := periodIndex[key]
		if !ok {
			idx = len(summary.Periods)
			periodIndex[key] = idx
			summary.PeriodEndDates = append(summary.PeriodEndDates, key)
			summary.Periods = append(summary.Periods, PeriodTotal{PeriodEnd: key, TotalAmount: decimal.Zero})
		}
		summary.Periods[idx].RecordCount++
		summary.Periods[idx].TotalAmount = summary.Periods[idx].TotalAmount.Add(amount)
	}

	for name := range summary.EmployerCounts {
		summary.EmployerNames = append(summary.EmployerNames, name)
	}
	sort.Strings(summary.EmployerNames)
	return summary
}
