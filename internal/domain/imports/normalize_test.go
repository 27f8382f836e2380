package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIBAN(t *testing.T) {
	valid := []string{"GB82WEST12345698765432", "AE070331234567890123456", "DE89370400440532013000"}
	for _, iban := range valid {
		assert.True(t, ValidIBAN(iban), iban)
	}
	invalid := []string{"GB82WEST12345698765433", "GB82", "1234WEST12345698765432", "GB82WEST1234569876543!", ""}
	for _, iban := range invalid {
		assert.False(t, ValidIBAN(iban), iban)
	}
}

func TestNormalizeIBAN(t *testing.T) {
	assert.Equal(t, "GB82WEST12345698765432", NormalizeIBAN(" gb82 west 1234 5698 7654 32 "))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "pay_period_to", NormalizeHeader("  Pay Period-To "))
	assert.Equal(t, "employee_id", NormalizeHeader("\ufeffEmployee  ID"))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("12,345.678")
	require.NoError(t, err)
	assert.Equal(t, "12345.68", v.Decimal.StringFixed(2))

	v, err = ParseAmount("  ")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = ParseAmount("12abc")
	require.Error(t, err)
}

func TestParseDateLayouts(t *testing.T) {
	for _, raw := range []string{"2026-01-31", "31/01/2026", "2026-01-31T10:00:00Z"} {
		d, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "2026-01-31", d.Format("2006-01-02"))
	}
	_, err := ParseDate("01-31-2026")
	require.Error(t, err)
}
