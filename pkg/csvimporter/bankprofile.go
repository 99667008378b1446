package csvimporter

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/shopspring/decimal"
)

// ProfileColumn places one transaction field in a bank's CSV layout. Name is
// the exact header cell expected at Index; DateFormat is only set on the date
// column and is a Go reference layout.
type ProfileColumn struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	DateFormat string `json:"date_format,omitempty"`
}

// BankProfile describes one bank's export format. FlipValues handles banks
// that report outflows as positive numbers.
type BankProfile struct {
	BankName   string                   `json:"bank_name"`
	FlipValues bool                     `json:"flip_values"`
	Columns    map[string]ProfileColumn `json:"columns"`
}

func LoadBankProfiles(path string) (map[string]BankProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading bank profiles %s: %w", path, err)
	}

	var profiles map[string]BankProfile
	if err := yaml.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("error parsing bank profiles %s: %w", path, err)
	}

	return profiles, nil
}

// isBank reports whether the header row matches a profile's expected column
// names at their expected positions.
func isBank(firstRow []string, columns map[string]ProfileColumn) bool {
	for _, column := range columns {
		if column.Index >= len(firstRow) {
			return false
		}
		if firstRow[column.Index] != column.Name {
			return false
		}
	}

	return true
}

// detectBank matches the header row against the known profiles, trying them in
// key order so detection is stable. Returns nil when no profile matches.
func detectBank(firstRow []string, profiles map[string]BankProfile) *BankProfile {
	keys := make([]string, 0, len(profiles))
	for key := range profiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		profile := profiles[key]
		if isBank(firstRow, profile.Columns) {
			return &profile
		}
	}

	return nil
}

// cleanMoney strips currency symbols and thousands separators, negating the
// value for banks that report outflows as positive.
func cleanMoney(amountString string, flipValues bool) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '$' || r == ',' {
			return -1
		}
		return r
	}, amountString)

	if !flipValues {
		return cleaned, nil
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return "", fmt.Errorf("error parsing amount %q: %w", amountString, err)
	}

	return amount.Neg().String(), nil
}

// processDate converts a raw date cell into the canonical ISO 8601 form that
// transactions are stored with.
func processDate(profile *BankProfile, date string) (string, error) {
	layout := profile.Columns["date"].DateFormat

	t, err := time.Parse(layout, date)
	if err != nil {
		return "", fmt.Errorf("error parsing date %q with layout %q: %w", date, layout, err)
	}

	return t.Format("2006-01-02T15:04:05"), nil
}
