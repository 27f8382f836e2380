package payslip

import (
	"context"
	"fmt"

	"payrolladmin/internal/domain/payroll"
)

const (
	MethodBrowser = "browser"
	MethodLayout  = "layout"
	MethodMinimal = "minimal"
)

// Document is everything a backend needs to draw one payslip.
type Document struct {
	Record payroll.Record
	Fields Fields
	HTML   string
	Token  string
}

type Backend interface {
	Name() string
	Render(ctx context.Context, doc Document) ([]byte, error)
}

type RenderError struct {
	Backend string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// PDFPrinter prints an HTML document to PDF bytes.
type PDFPrinter interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

type BrowserBackend struct {
	Printer PDFPrinter
}

func (BrowserBackend) Name() string { return MethodBrowser }

func (b BrowserBackend) Render(ctx context.Context, doc Document) ([]byte, error) {
	if doc.HTML == "" {
		return nil, fmt.Errorf("empty html document")
	}
	return b.Printer.PrintPDF(ctx, doc.HTML)
}
