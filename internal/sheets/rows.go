package sheets

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"cambi/internal/core"
)

// Columns is the fixed column layout of exported tables.
const Columns = 5

// Header returns the column titles for the given currency codes.
func Header(primary, secondary string) []string {
	return []string{
		"id", "date", "description",
		"amount_" + strings.ToLower(primary),
		"amount_" + strings.ToLower(secondary),
	}
}

// Row returns one entry as table cells. Amounts are written with two
// decimals; legacy amounts that are not a number are written as "NaN".
func Row(e core.Entry) []string {
	return []string{
		e.ID,
		e.Date.String(),
		e.Description,
		amount(e.AmountPrimary),
		amount(e.AmountSecondary),
	}
}

// Table returns the header followed by one row per entry.
func Table(entries []core.Entry, primary, secondary string) [][]string {
	out := make([][]string, 0, len(entries)+1)
	out = append(out, Header(primary, secondary))
	for _, e := range entries {
		out = append(out, Row(e))
	}
	return out
}

// WriteCSV writes Table(entries) as CSV.
func WriteCSV(w io.Writer, entries []core.Entry, primary, secondary string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Table(entries, primary, secondary)); err != nil {
		return err
	}
	return cw.Error()
}

func amount(d decimal.NullDecimal) string {
	if !d.Valid {
		return "NaN"
	}
	return d.Decimal.StringFixed(2)
}
