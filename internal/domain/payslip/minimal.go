package payslip

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// MinimalBackend writes the payslip as plain text lines with no boxes or
// images. It is the last resort when the browser is unavailable.
type MinimalBackend struct{}

func (MinimalBackend) Name() string { return MethodMinimal }

func (MinimalBackend) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	line := func(text string) {
		pdf.Cell(0, 7, tr(text))
		pdf.Ln(6)
	}
	line("Employer: " + doc.Fields.Text("employer_name"))
	line("Employee: " + doc.Fields.Text("employee_name"))
	line(fmt.Sprintf("Period: %s to %s", doc.Fields.Text("pay_period_from"), doc.Fields.Text("pay_period_to")))
	pdf.Ln(4)

	for _, s := range payslipSections {
		if !s.visible(doc) {
			continue
		}
		for _, item := range s.visibleItems(doc.Fields) {
			line(fmt.Sprintf("%s: %s", item.Label, doc.Fields.Text(item.Field)))
		}
		if s.Total != nil && doc.Fields.Text(s.Total.Field) != "" {
			line(fmt.Sprintf("%s: %s", s.Total.Label, doc.Fields.Text(s.Total.Field)))
		}
	}
	if showNetPayment(doc) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 12)
		line("Net payment: " + doc.Fields.Text("net_payment"))
		pdf.SetFont("Helvetica", "", 11)
	}
	if bank := doc.Fields.Text("bank_name"); bank != "" {
		line("Bank: " + bank)
	}
	if iban := doc.Fields.Text("iban"); iban != "" {
		line("IBAN: " + iban)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write minimal pdf: %w", err)
	}
	return buf.Bytes(), nil
}
