package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Entry is a single recorded transaction with amounts in the primary and
	// secondary currency. An amount that was stored as not-a-number is kept
	// as an invalid NullDecimal.
	Entry struct {
		ID              string
		Date            Date
		Description     string
		AmountPrimary   decimal.NullDecimal
		AmountSecondary decimal.NullDecimal
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Timestamps with a time component are
// truncated to their calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewDate(t.Year(), int(t.Month()), t.Day()), nil
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the YYYY-MM-DD form, or an empty string for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails on a well-formed JSON string: dates that cannot be
// parsed decode to the zero Date so one bad row does not poison the slot.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			*d = Date{}
			return nil
		}
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

type entryJSON struct {
	ID              string              `json:"id"`
	Date            Date                `json:"date"`
	Description     string              `json:"description"`
	AmountPrimary   decimal.NullDecimal `json:"amountPrimary"`
	AmountSecondary decimal.NullDecimal `json:"amountSecondary"`
}

// legacyEntryJSON carries the column names written by the first version of
// the summary page.
type legacyEntryJSON struct {
	PLN *decimal.NullDecimal `json:"plnAmount"`
	INR *decimal.NullDecimal `json:"inrAmount"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON(e))
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var cur entryJSON
	if err := json.Unmarshal(b, &cur); err != nil {
		return err
	}
	_, hasPrimary := raw["amountPrimary"]
	_, hasSecondary := raw["amountSecondary"]
	if !hasPrimary || !hasSecondary {
		var legacy legacyEntryJSON
		if err := json.Unmarshal(b, &legacy); err != nil {
			return err
		}
		if !hasPrimary && legacy.PLN != nil {
			cur.AmountPrimary = *legacy.PLN
		}
		if !hasSecondary && legacy.INR != nil {
			cur.AmountSecondary = *legacy.INR
		}
	}
	*e = Entry(cur)
	return nil
}

// Primary returns the primary amount, or zero when it is not a number.
func (e Entry) Primary() decimal.Decimal {
	if !e.AmountPrimary.Valid {
		return decimal.Zero
	}
	return e.AmountPrimary.Decimal
}

// Secondary returns the secondary amount, or zero when it is not a number.
func (e Entry) Secondary() decimal.Decimal {
	if !e.AmountSecondary.Valid {
		return decimal.Zero
	}
	return e.AmountSecondary.Decimal
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("empty id")
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len([]rune(e.Description)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	for _, a := range []decimal.NullDecimal{e.AmountPrimary, e.AmountSecondary} {
		if !a.Valid || a.Decimal.IsNegative() {
			return ErrInvalidAmount
		}
	}
	return nil
}
