package imports

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"payrolladmin/internal/domain/payroll"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	exportSheet = "Payroll"
)

// ExportColumns is the export header. Its leading columns match what Parse
// accepts, so an export can be edited and re-imported.
func ExportColumns() []string {
	cols := []string{"employee_id", "employer_id", "pay_period_from", "pay_period_to"}
	cols = append(cols, payroll.MoneyColumns...)
	return append(cols, "currency", "bank_name", "iban", "employee_email",
		"id", "employee_name", "employer_name", "payslip_url", "payslip_method", "payslip_generated_at")
}

func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func Export(w io.Writer, format string, records []payroll.Record) error {
	switch format {
	case FormatCSV, "":
		return ExportCSV(w, records)
	case FormatXLSX:
		return ExportXLSX(w, records)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func ExportCSV(w io.Writer, records []payroll.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(exportRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportXLSX(w io.Writer, records []payroll.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	header := ExportColumns()
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headerRow); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastHeader, bold); err != nil {
		return err
	}

	moneyStart := 4
	for i, r := range records {
		values := exportRow(r)
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		// Money columns as numbers so spreadsheets can sum them.
		for j, amount := range moneyValues(r) {
			if amount.Valid {
				cells[moneyStart+j] = amount.Decimal.InexactFloat64()
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &cells); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}

func moneyValues(r payroll.Record) []decimal.NullDecimal {
	amounts := r.Amounts()
	out := make([]decimal.NullDecimal, len(payroll.MoneyColumns))
	for i, col := range payroll.MoneyColumns {
		out[i] = amounts[col]
	}
	return out
}

func exportRow(r payroll.Record) []string {
	row := []string{r.EmployeeID, r.EmployerID, formatDay(r.PeriodFrom), formatDay(r.PeriodTo)}
	for _, amount := range moneyValues(r) {
		if amount.Valid {
			row = append(row, amount.Decimal.StringFixed(2))
		} else {
			row = append(row, "")
		}
	}
	generated := ""
	if r.PayslipGeneratedAt != nil {
		generated = r.PayslipGeneratedAt.UTC().Format(time.RFC3339)
	}
	return append(row, r.Currency, r.BankName, r.IBAN, r.EmployeeEmail,
		r.ID, r.EmployeeName, r.EmployerName, r.PayslipURL, r.PayslipMethod, generated)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
