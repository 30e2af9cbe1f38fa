package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLength is the longest description accepted, in characters.
const MaxDescriptionLength = 200

// Form field names, shared with the HTML form and the JSON body.
const (
	FieldDate            = "date"
	FieldDescription     = "description"
	FieldAmountPrimary   = "amountPrimary"
	FieldAmountSecondary = "amountSecondary"
)

// EntryForm holds the raw, unvalidated values of an add-entry submission.
type EntryForm struct {
	Date            string `json:"date"`
	Description     string `json:"description"`
	AmountPrimary   string `json:"amountPrimary"`
	AmountSecondary string `json:"amountSecondary"`
}

// Draft is a validated entry that has not been assigned an id yet.
type Draft struct {
	Date            Date
	Description     string
	AmountPrimary   decimal.Decimal
	AmountSecondary decimal.Decimal
}

// FieldError is a validation failure for a single form field.
type FieldError struct {
	Field   string
	Err     error
	Message string
}

// ValidationError collects every field that failed validation.
// errors.Is matches any of the underlying sentinel errors.
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(v.Fields))
	for _, f := range v.Fields {
		errs = append(errs, f.Err)
	}
	return errs
}

// Messages returns field -> message, for rendering next to form inputs.
func (v *ValidationError) Messages() map[string]string {
	m := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// FieldNames returns the failing fields in sorted order.
func (v *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		names = append(names, f.Field)
	}
	sort.Strings(names)
	return names
}

func (v *ValidationError) add(field string, err error, msg string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Err: err, Message: msg})
}

// Parse validates the form and converts it to a Draft. On failure the
// returned error is a *ValidationError listing every bad field.
func (f EntryForm) Parse() (Draft, error) {
	var (
		d  Draft
		ve ValidationError
	)

	if strings.TrimSpace(f.Date) == "" {
		ve.add(FieldDate, ErrInvalidDate, "Date is required")
	} else if date, err := ParseDate(f.Date); err != nil {
		ve.add(FieldDate, ErrInvalidDate, "Date must be in YYYY-MM-DD format")
	} else {
		d.Date = date
	}

	desc := SanitizeDescription(f.Description)
	switch {
	case desc == "":
		ve.add(FieldDescription, ErrEmptyDescription, "Description is required")
	case len([]rune(desc)) > MaxDescriptionLength:
		ve.add(FieldDescription, ErrDescriptionTooLong, fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
	default:
		d.Description = desc
	}

	if amt, err := ParseAmount(f.AmountPrimary); err != nil {
		ve.add(FieldAmountPrimary, ErrInvalidAmount, "Amount must be a non-negative number")
	} else {
		d.AmountPrimary = amt
	}
	if amt, err := ParseAmount(f.AmountSecondary); err != nil {
		ve.add(FieldAmountSecondary, ErrInvalidAmount, "Amount must be a non-negative number")
	} else {
		d.AmountSecondary = amt
	}

	if len(ve.Fields) > 0 {
		return Draft{}, &ve
	}
	return d, nil
}

// Entry assigns id to the draft.
func (d Draft) Entry(id string) Entry {
	return Entry{
		ID:              id,
		Date:            d.Date,
		Description:     d.Description,
		AmountPrimary:   decimal.NewNullDecimal(d.AmountPrimary),
		AmountSecondary: decimal.NewNullDecimal(d.AmountSecondary),
	}
}

// ParseAmount parses a non-negative decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, thousands separators and anything that is not a plain decimal
// number are rejected with ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digits++
		case r == '.':
		default:
			// Only positive values allowed
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return v, nil
}

// SanitizeDescription trims the description, drops control characters and
// collapses runs of whitespace.
func SanitizeDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// IsValidationError reports whether err carries field validation failures.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
