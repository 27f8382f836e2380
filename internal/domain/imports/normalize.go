package imports

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// NormalizeHeader lowercases a column name and joins words with underscores.
func NormalizeHeader(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	name = strings.ToLower(name)
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("must be a date (YYYY-MM-DD or DD/MM/YYYY)")
}

// ParseAmount accepts plain or thousands-separated numbers. Blank is null.
func ParseAmount(raw string) (decimal.NullDecimal, error) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("must be a number")
	}
	return decimal.NullDecimal{Decimal: d.Round(2), Valid: true}, nil
}

func NormalizeUUID(raw string) string {
	raw = strings.TrimSpace(raw)
	if id, err := uuid.Parse(raw); err == nil {
		return id.String()
	}
	return raw
}

func NormalizeIBAN(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// ValidIBAN checks length, character set and the ISO 13616 mod-97 checksum.
func ValidIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	for i, c := range iban {
		switch {
		case i < 2 && (c < 'A' || c > 'Z'):
			return false
		case i >= 2 && i < 4 && (c < '0' || c > '9'):
			return false
		case (c < 'A' || c > 'Z') && (c < '0' || c > '9'):
			return false
		}
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, c := range rearranged {
		if c >= 'A' && c <= 'Z' {
			fmt.Fprintf(&digits, "%d", c-'A'+10)
			continue
		}
		digits.WriteRune(c)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
