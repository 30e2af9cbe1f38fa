package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Months is the fixed English month-name table used by filter tokens.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var ErrInvalidFilter = errors.New("invalid filter")

type (
	// YearMonth is a parsed "YYYY-MonthName" filter token.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	Totals struct {
		Primary   decimal.Decimal
		Secondary decimal.Decimal
	}

	// Summary is what the summary page shows for one filter.
	Summary struct {
		Filter      string
		Entries     []Entry
		Totals      Totals
		AverageRate string
	}

	// MonthChoice is one cell of the filter picker.
	MonthChoice struct {
		Token string
		Label string
	}

	// YearChoices groups the picker cells for one year.
	YearChoices struct {
		Year   int
		Months []MonthChoice
	}
)

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%s", ym.Year, Months[ym.Month-1])
}

// Contains reports whether d falls in the year and month. The zero date never
// matches.
func (ym YearMonth) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	return d.Year() == ym.Year && d.Month() == ym.Month
}

// ParseYearMonth parses a "YYYY-MonthName" token. Month names must match the
// Months table exactly.
func ParseYearMonth(token string) (YearMonth, error) {
	year, name, ok := strings.Cut(token, "-")
	if !ok {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidFilter, token)
	}
	if len(year) != 4 || strings.IndexFunc(year, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidFilter, token)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidFilter, token)
	}
	for i, m := range Months {
		if m == name {
			return YearMonth{Year: y, Month: time.Month(i + 1)}, nil
		}
	}
	return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidFilter, token)
}

// FilterByMonth keeps the entries dated in the given "YYYY-MonthName" month.
// An empty token returns entries unchanged; a malformed one matches nothing.
func FilterByMonth(entries []Entry, yearMonth string) []Entry {
	if yearMonth == "" {
		return entries
	}
	ym, err := ParseYearMonth(yearMonth)
	if err != nil {
		return []Entry{}
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if ym.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// ComputeTotals sums both amount columns. Amounts that are not a number are
// skipped.
func ComputeTotals(entries []Entry) Totals {
	t := Totals{Primary: decimal.Zero, Secondary: decimal.Zero}
	for _, e := range entries {
		if e.AmountPrimary.Valid {
			t.Primary = t.Primary.Add(e.AmountPrimary.Decimal)
		}
		if e.AmountSecondary.Valid {
			t.Secondary = t.Secondary.Add(e.AmountSecondary.Decimal)
		}
	}
	return t
}

// AverageRate returns secondary/primary with two decimals, or "0" when
// either total is zero.
func AverageRate(primary, secondary decimal.Decimal) string {
	if primary.IsZero() || secondary.IsZero() {
		return "0"
	}
	return secondary.DivRound(primary, 2).StringFixed(2)
}

// AverageRate returns the rate for these totals.
func (t Totals) AverageRate() string {
	return AverageRate(t.Primary, t.Secondary)
}

// Summarize filters entries and computes totals and rate for the result.
func Summarize(entries []Entry, yearMonth string) Summary {
	filtered := FilterByMonth(entries, yearMonth)
	totals := ComputeTotals(filtered)
	return Summary{
		Filter:      yearMonth,
		Entries:     filtered,
		Totals:      totals,
		AverageRate: totals.AverageRate(),
	}
}

// MonthChoices builds the filter picker grid: every configured year times
// the twelve months, in the order the years are given.
func MonthChoices(years []int) []YearChoices {
	out := make([]YearChoices, 0, len(years))
	for _, y := range years {
		yc := YearChoices{Year: y, Months: make([]MonthChoice, 0, len(Months))}
		for i, m := range Months {
			ym := YearMonth{Year: y, Month: time.Month(i + 1)}
			yc.Months = append(yc.Months, MonthChoice{Token: ym.String(), Label: m})
		}
		out = append(out, yc)
	}
	return out
}
