package imports

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolladmin/internal/domain/payroll"
)

type fakeWriter struct {
	employees map[string]bool
	employers map[string]bool
	inserted  []payroll.Record
}

func (f *fakeWriter) InsertBatch(_ context.Context, _ string, records []payroll.Record) (int, error) {
	f.inserted = append(f.inserted, records...)
	return len(records), nil
}

func (f *fakeWriter) KnownEmployees(context.Context, string, []string) (map[string]bool, error) {
	return f.employees, nil
}

func (f *fakeWriter) KnownEmployers(context.Context, string, []string) (map[string]bool, error) {
	return f.employers, nil
}

func TestImportInsertsValidFile(t *testing.T) {
	store := &fakeWriter{employees: map[string]bool{employeeA: true}, employers: map[string]bool{employerX: true}}
	svc := NewService(store)

	_, inserted, err := svc.Import(context.Background(), "tenant", strings.NewReader(
		"employee_id,employer_id,pay_period_from,pay_period_to,net_salary\n"+
			employeeA+","+employerX+",2026-01-01,2026-01-31,5000\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.Len(t, store.inserted, 1)
}

func TestImportUnknownReferencesBlockWrite(t *testing.T) {
	store := &fakeWriter{employees: map[string]bool{employeeA: true}, employers: map[string]bool{employerX: true}}
	svc := NewService(store)

	result, inserted, err := svc.Import(context.Background(), "tenant", strings.NewReader(
		"employee_id,employer_id,pay_period_from,pay_period_to\n"+
			employeeA+","+employerX+",2026-01-01,2026-01-31\n"+
			employeeB+","+employerX+",2026-01-01,2026-01-31\n"))
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Empty(t, store.inserted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, RowError{Row: 3, Field: "employee_id", Message: "unknown employee"}, result.Errors[0])
	require.Len(t, result.Valid, 1)
}

func TestExportCSVRoundTrips(t *testing.T) {
	rec := payroll.Record{
		ID:         "rec-1",
		EmployeeID: employeeA,
		EmployerID: employerX,
		Currency:   "AED",
		IBAN:       "GB82WEST12345698765432",
	}
	rec.PeriodFrom, _ = ParseDate("2026-01-01")
	rec.PeriodTo, _ = ParseDate("2026-01-31")
	rec.SetAmount("net_salary", mustAmount(t, "5000"))

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatCSV, []payroll.Record{rec}))

	result, err := Parse(&buf)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.Len(t, result.Valid, 1)
	assert.Equal(t, "5000.00", result.Valid[0].NetSalary.Decimal.StringFixed(2))
}

func TestExportXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, FormatXLSX, []payroll.Record{{EmployeeID: employeeA, Currency: "AED"}}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestExportUnknownFormat(t *testing.T) {
	require.ErrorIs(t, Export(&bytes.Buffer{}, "pdf", nil), ErrUnsupportedFormat)
}

func mustAmount(t *testing.T, v string) decimal.NullDecimal {
	t.Helper()
	d, err := ParseAmount(v)
	require.NoError(t, err)
	return d
}
