package imports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"payrolladmin/internal/domain/payroll"
)

var requiredColumns = []string{"employee_id", "employer_id", "pay_period_from", "pay_period_to"}

var rowValidator = newRowValidator()

func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("csv")
	})
	_ = v.RegisterValidation("iban", func(fl validator.FieldLevel) bool {
		return ValidIBAN(fl.Field().String())
	})
	return v
}

// Parse reads a payroll CSV. Every problem in the file is collected; rows
// with any error are left out of Valid. Later rows repeating an
// employee and pay period are reported as duplicates.
func Parse(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, ErrEmptyFile
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[NormalizeHeader(name)] = i
	}

	var result Result
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			result.Errors = append(result.Errors, RowError{Row: 1, Field: col, Message: "missing required column"})
		}
	}
	if result.HasErrors() {
		return result, nil
	}

	seen := map[string]int{}
	for rowNum := 2; ; rowNum++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.TotalRows++
				result.Errors = append(result.Errors, RowError{Row: rowNum, Message: parseErr.Err.Error()})
				continue
			}
			return Result{}, fmt.Errorf("read row %d: %w", rowNum, err)
		}
		if blank(values) {
			continue
		}
		result.TotalRows++

		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(values) {
				return ""
			}
			return strings.TrimSpace(values[idx])
		}

		rec, rowErrs := parseRow(rowNum, cell)
		if len(rowErrs) == 0 {
			key := rec.EmployeeID + "|" + rec.PeriodFrom.Format("2006-01-02") + "|" + rec.PeriodTo.Format("2006-01-02")
			if first, dup := seen[key]; dup {
				rowErrs = append(rowErrs, RowError{Row: rowNum, Field: "employee_id", Message: fmt.Sprintf("duplicate of row %d for the same pay period", first)})
			} else {
				seen[key] = rowNum
			}
		}
		if len(rowErrs) > 0 {
			result.Errors = append(result.Errors, rowErrs...)
			continue
		}
		result.Valid = append(result.Valid, rec)
		result.validRows = append(result.validRows, rowNum)
	}
	return result, nil
}

func parseRow(rowNum int, cell func(string) string) (payroll.Record, []RowError) {
	var errs []RowError
	add := func(field, msg string) {
		errs = append(errs, RowError{Row: rowNum, Field: field, Message: msg})
	}

	raw := row{
		EmployeeID: NormalizeUUID(cell("employee_id")),
		EmployerID: NormalizeUUID(cell("employer_id")),
		PeriodFrom: cell("pay_period_from"),
		PeriodTo:   cell("pay_period_to"),
		Currency:   strings.ToUpper(cell("currency")),
		IBAN:       NormalizeIBAN(cell("iban")),
		Email:      strings.ToLower(cell("employee_email")),
		BankName:   cell("bank_name"),
	}
	if err := rowValidator.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			add("", err.Error())
		}
		for _, fe := range verrs {
			add(fe.Field(), messageFor(fe))
		}
	}

	rec := payroll.Record{
		EmployeeID:    raw.EmployeeID,
		EmployerID:    raw.EmployerID,
		Currency:      raw.Currency,
		IBAN:          raw.IBAN,
		EmployeeEmail: raw.Email,
		BankName:      raw.BankName,
	}
	if rec.Currency == "" {
		rec.Currency = payroll.DefaultCurrency
	}

	if raw.PeriodFrom != "" {
		d, err := ParseDate(raw.PeriodFrom)
		if err != nil {
			add("pay_period_from", err.Error())
		}
		rec.PeriodFrom = d
	}
	if raw.PeriodTo != "" {
		d, err := ParseDate(raw.PeriodTo)
		if err != nil {
			add("pay_period_to", err.Error())
		}
		rec.PeriodTo = d
	}
	if !rec.PeriodFrom.IsZero() && !rec.PeriodTo.IsZero() && rec.PeriodTo.Before(rec.PeriodFrom) {
		add("pay_period_to", "must be on or after pay_period_from")
	}

	for _, col := range payroll.MoneyColumns {
		value, err := ParseAmount(cell(col))
		if err != nil {
			add(col, err.Error())
			continue
		}
		rec.SetAmount(col, value)
	}
	return rec, errs
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "iban":
		return "must be a valid IBAN"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag() + " validation"
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
