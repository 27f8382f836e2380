package payslip

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

const (
	pageMargin   = 15.0
	contentWidth = 180.0
	rowHeight    = 7.0
	qrSize       = 28.0
)

// LayoutBackend draws the payslip directly with boxed sections, a bank
// detail grid and a QR code of the payslip token.
type LayoutBackend struct{}

func (LayoutBackend) Name() string { return MethodLayout }

func (LayoutBackend) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	drawHeader(pdf, tr, doc)
	if doc.Token != "" {
		if err := drawQR(pdf, doc.Token); err != nil {
			return nil, err
		}
	}

	for _, s := range payslipSections {
		if !s.visible(doc) {
			continue
		}
		drawSection(pdf, tr, s, doc.Fields)
	}

	if showNetPayment(doc) {
		pdf.Ln(2)
		pdf.SetFillColor(30, 64, 120)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(contentWidth/2, 11, "  Net payment", "", 0, "L", true, 0, "")
		pdf.CellFormat(contentWidth/2, 11, tr(doc.Fields.Text("net_payment"))+"  ", "", 1, "R", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	drawBankGrid(pdf, tr, doc.Fields)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write layout pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(pdf *gofpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(contentWidth-qrSize, 10, tr(doc.Fields.Text("employer_name")), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(contentWidth-qrSize, 6, "Payslip", "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentWidth-qrSize, rowHeight, tr(doc.Fields.Text("employee_name")), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	period := fmt.Sprintf("Pay period: %s - %s", doc.Fields.Text("pay_period_from"), doc.Fields.Text("pay_period_to"))
	pdf.CellFormat(contentWidth-qrSize, 6, tr(period), "", 1, "L", false, 0, "")
	if code := doc.Fields.Text("currency"); code != "" {
		pdf.CellFormat(contentWidth-qrSize, 6, "Currency: "+code, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func drawQR(pdf *gofpdf.Fpdf, token string) error {
	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("token-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("token-qr", pageMargin+contentWidth-qrSize, pageMargin, qrSize, qrSize, false, opts, 0, "")
	return nil
}

func drawSection(pdf *gofpdf.Fpdf, tr func(string) string, s section, fields Fields) {
	items := s.visibleItems(fields)
	rows := len(items)
	if s.Total != nil && fields.Text(s.Total.Field) != "" {
		rows++
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(30, 64, 120)
	pdf.CellFormat(contentWidth, 8, tr(s.Title), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	boxTop := pdf.GetY()
	boxHeight := float64(rows)*rowHeight + 2
	pdf.SetDrawColor(210, 214, 222)
	pdf.Rect(pageMargin, boxTop, contentWidth, boxHeight, "D")
	pdf.SetFillColor(30, 64, 120)
	pdf.Rect(pageMargin, boxTop, 1.5, boxHeight, "F")
	pdf.SetY(boxTop + 1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range items {
		pdf.SetX(pageMargin + 4)
		pdf.CellFormat(contentWidth/2, rowHeight, tr(item.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentWidth/2-8, rowHeight, tr(fields.Text(item.Field)), "", 1, "R", false, 0, "")
	}
	if s.Total != nil && fields.Text(s.Total.Field) != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetX(pageMargin + 4)
		pdf.CellFormat(contentWidth/2, rowHeight, tr(s.Total.Label), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentWidth/2-8, rowHeight, tr(fields.Text(s.Total.Field)), "", 1, "R", false, 0, "")
	}
	pdf.SetY(boxTop + boxHeight + 4)
}

func drawBankGrid(pdf *gofpdf.Fpdf, tr func(string) string, fields Fields) {
	bank := fields.Text("bank_name")
	iban := fields.Text("iban")
	if bank == "" && iban == "" {
		return
	}
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(30, 64, 120)
	pdf.CellFormat(contentWidth, 8, "Bank details", "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	half := contentWidth / 2
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(half, 5, "Bank", "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, "IBAN", "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(half, rowHeight, tr(bank), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, rowHeight, tr(iban), "", 1, "L", false, 0, "")
}
