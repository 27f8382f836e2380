package payslip

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/domain/payroll"
)

const testTemplate = `<html><body>
<h1>{{employer_name}}</h1>
<p>{{employee_name}} {{pay_period_from}} - {{pay_period_to}}</p>
<p class="net">{{net_salary}}</p>
{{#if has_payment_adjustments}}<section id="adjustments">{{total_payment_adjustments}}</section>{{/if}}
<p class="bonus">[{{bonus}}]</p>
</body></html>`

func sampleRecord() payroll.Record {
	return payroll.Record{
		ID:           "7d3c8f0e-54a0-4f1e-9a4f-1f8b2f7f6c01",
		EmployeeName: "Jane <Doe>",
		EmployerName: "Acme Trading LLC",
		PeriodFrom:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:     time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		BasicSalary:  money("10000"),
		TotalSalary:  money("10000"),
		NetSalary:    money("10000"),
		NetPayment:   money("10000"),
		Currency:     "aed",
		BankName:     "Emirates NBD",
		IBAN:         "AE070331234567890123456",
	}
}

func TestRenderTemplateAdjustmentsSection(t *testing.T) {
	tests := []struct {
		name        string
		adjustments string
		null        bool
		wantSection bool
	}{
		{name: "null", null: true, wantSection: false},
		{name: "zero", adjustments: "0", wantSection: false},
		{name: "non-zero", adjustments: "250", wantSection: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := sampleRecord()
			if !tc.null {
				r.TotalPaymentAdjustments = money(tc.adjustments)
			}
			fields, err := BuildFields(r)
			require.NoError(t, err)

			html, err := RenderTemplate(testTemplate, fields)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSection, strings.Contains(html, `id="adjustments"`))
		})
	}
}

func TestRenderTemplateFormatsAndEscapes(t *testing.T) {
	fields, err := BuildFields(sampleRecord())
	require.NoError(t, err)

	html, err := RenderTemplate(testTemplate, fields)
	require.NoError(t, err)
	assert.Contains(t, html, "AED 10,000.00")
	assert.Contains(t, html, "01 Jan 2026 - 31 Jan 2026")
	assert.Contains(t, html, "Jane &lt;Doe&gt;")
	assert.Contains(t, html, "[]", "null bonus renders blank")
}

func TestBuildFieldsRejectsBadCurrency(t *testing.T) {
	r := sampleRecord()
	r.Currency = "not-a-code"
	_, err := BuildFields(r)
	require.Error(t, err)
}

func TestLoadTemplate(t *testing.T) {
	_, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.html"))
	require.ErrorIs(t, err, ErrTemplateUnavailable)

	path := filepath.Join(t.TempDir(), "payslip.html")
	require.NoError(t, os.WriteFile(path, []byte(testTemplate), 0o600))
	tpl, err := LoadTemplate(path)
	require.NoError(t, err)

	fields, err := BuildFields(sampleRecord())
	require.NoError(t, err)
	out, err := tpl.Render(fields)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Trading LLC")
}
