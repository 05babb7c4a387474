// Package models defines the domain entities for the receipt ledger.
package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical textual date form used in the ledger and in
// calendar action tags.
const DateLayout = "2006.01.02"

// MonthLayout is the textual form of a calendar month in action tags.
const MonthLayout = "2006.01"

// Attachment sentinels stored in the receipt column.
const (
	AttachmentNone   = "No receipt"
	AttachmentFailed = "Upload failed"
)

// TodayKeyword is accepted wherever a typed date is expected.
const TodayKeyword = "today"

// SkipKeyword is accepted instead of a receipt image.
const SkipKeyword = "skip"

// Categories is the fixed set of expense categories.
var Categories = []string{
	"Food",
	"Transportation",
	"Accommodation",
	"House furniture",
	"Electronics",
	"Other",
}

// Tags is the fixed set of expense tags.
var Tags = []string{
	"Business",
	"Personal",
	"House",
	"Entertainment",
	"Gift",
}

var (
	// ErrInvalidDate is returned when text is not a YYYY.MM.DD date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidAmount is returned when text is not a positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrIncompleteExpense is returned when a draft is missing a field.
	ErrIncompleteExpense = errors.New("incomplete expense")
)

const (
	// amountPlaces is the number of fraction digits an amount is rounded to.
	amountPlaces = 2
	// maxAmountDigits bounds the integer digits of an amount.
	maxAmountDigits = 15
	// maxAmountScale bounds the fraction digits accepted before rounding.
	maxAmountScale = 20
)

// IsCategory reports whether name is one of the fixed categories.
func IsCategory(name string) bool {
	return slices.Contains(Categories, name)
}

// IsTag reports whether name is one of the fixed tags.
func IsTag(name string) bool {
	return slices.Contains(Tags, name)
}

// FormatDate renders t in the canonical ledger form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a canonical YYYY.MM.DD date. The keyword "today"
// (case-insensitive) resolves to now's calendar date.
func ParseDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, TodayKeyword) {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(DateLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	return t, nil
}

// ParseAmount parses a positive decimal amount and rounds it to two
// fraction digits. A comma is accepted as the decimal separator and
// exponent forms like "1e3" are allowed.
func ParseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "$")
	text = strings.TrimSpace(text)

	amount, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if amount.NumDigits()+int(amount.Exponent()) > maxAmountDigits || amount.Exponent() < -maxAmountScale {
		return decimal.Zero, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, text)
	}

	amount = amount.Round(amountPlaces)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q rounds to zero", ErrInvalidAmount, text)
	}
	return amount, nil
}

// Expense is one ledger record.
type Expense struct {
	Date          time.Time
	Place         string
	Amount        decimal.Decimal
	Category      string
	ReceiptNumber string
	Tag           string
	Attachment    string
}

// Missing returns the first field that is not yet set, ignoring the
// attachment. ok is false when every required field is present.
func (e *Expense) Missing() (Field, bool) {
	switch {
	case e.Date.IsZero():
		return FieldDate, true
	case strings.TrimSpace(e.Place) == "":
		return FieldPlace, true
	case !e.Amount.IsPositive():
		return FieldAmount, true
	case !IsCategory(e.Category):
		return FieldCategory, true
	case strings.TrimSpace(e.ReceiptNumber) == "":
		return FieldReceiptNumber, true
	case !IsTag(e.Tag):
		return FieldTag, true
	}
	return 0, false
}

// Row converts a complete expense to its ledger row. The attachment column
// is always filled.
func (e *Expense) Row() (Row, error) {
	if field, missing := e.Missing(); missing {
		return Row{}, fmt.Errorf("%w: %s not set", ErrIncompleteExpense, field)
	}
	attachment := e.Attachment
	if attachment == "" {
		attachment = AttachmentNone
	}
	return Row{
		FormatDate(e.Date),
		e.Place,
		e.Amount.String(),
		e.Category,
		e.ReceiptNumber,
		e.Tag,
		attachment,
	}, nil
}

// Set stores a canonical cell value into the field.
func (e *Expense) Set(field Field, value string) error {
	switch field {
	case FieldDate:
		t, err := time.Parse(DateLayout, value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, value)
		}
		e.Date = t
	case FieldPlace:
		e.Place = value
	case FieldAmount:
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, value)
		}
		e.Amount = amount
	case FieldCategory:
		e.Category = value
	case FieldReceiptNumber:
		e.ReceiptNumber = value
	case FieldTag:
		e.Tag = value
	case FieldAttachment:
		e.Attachment = value
	default:
		return fmt.Errorf("unknown field %s", field)
	}
	return nil
}

// StoredFile is an uploaded receipt image.
type StoredFile struct {
	ID   string
	Link string
}

// Suggestion is a guessed category and tag for an expense. Either value
// may be empty when no guess was made for it.
type Suggestion struct {
	Category   string
	Tag        string
	Confidence float64
	Reasoning  string
}
