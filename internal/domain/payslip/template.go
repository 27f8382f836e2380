package payslip

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aymerick/raymond"

	"payrolladmin/internal/domain/payroll"
)

var ErrTemplateUnavailable = errors.New("payslip template unavailable")

const dateLayout = "02 Jan 2006"

// Fields is the data a payslip template is rendered with. Monetary values
// are preformatted strings; blank means the amount is absent.
type Fields map[string]any

func (f Fields) Text(key string) string {
	s, _ := f[key].(string)
	return s
}

type Template struct {
	tpl *raymond.Template
}

func ParseTemplate(src string) (*Template, error) {
	tpl, err := raymond.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse payslip template: %w", err)
	}
	return &Template{tpl: tpl}, nil
}

// LoadTemplate reads and parses the template file at path.
func LoadTemplate(path string) (*Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}
	tpl, err := ParseTemplate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnavailable, err)
	}
	return tpl, nil
}

func (t *Template) Render(fields Fields) (string, error) {
	out, err := t.tpl.Exec(map[string]any(fields))
	if err != nil {
		return "", fmt.Errorf("render payslip template: %w", err)
	}
	return out, nil
}

// RenderTemplate parses and renders src in one step.
func RenderTemplate(src string, fields Fields) (string, error) {
	tpl, err := ParseTemplate(src)
	if err != nil {
		return "", err
	}
	return tpl.Render(fields)
}

// BuildFields formats every monetary column of r under its column name and
// adds the descriptive fields. A malformed currency code fails the record.
func BuildFields(r payroll.Record) (Fields, error) {
	code, err := CurrencyCode(r.Currency)
	if err != nil {
		return nil, err
	}
	fields := Fields{
		"employee_name":           r.EmployeeName,
		"employer_name":           r.EmployerName,
		"employee_email":          r.EmployeeEmail,
		"pay_period_from":         formatDate(r.PeriodFrom),
		"pay_period_to":           formatDate(r.PeriodTo),
		"bank_name":               r.BankName,
		"iban":                    r.IBAN,
		"currency":                code,
		"payslip_token":           r.PayslipToken,
		"has_payment_adjustments": r.HasPaymentAdjustments(),
	}
	for column, value := range r.Amounts() {
		formatted, err := FormatMoney(value, code)
		if err != nil {
			return nil, err
		}
		fields[column] = formatted
	}
	return fields, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
