package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Field identifies one of the seven ledger columns.
type Field int

// Ledger columns in storage order.
const (
	FieldDate Field = iota
	FieldPlace
	FieldAmount
	FieldCategory
	FieldReceiptNumber
	FieldTag
	FieldAttachment
)

// FieldCount is the number of ledger columns.
const FieldCount = 7

// Fields lists every field in column order.
var Fields = []Field{
	FieldDate,
	FieldPlace,
	FieldAmount,
	FieldCategory,
	FieldReceiptNumber,
	FieldTag,
	FieldAttachment,
}

var fieldLabels = [FieldCount]string{
	"Date",
	"Place",
	"Amount",
	"Category",
	"Receipt #",
	"Tag",
	"Receipt",
}

// HeaderRow is the first row of every ledger.
var HeaderRow = Row(fieldLabels)

// Valid reports whether f names a ledger column.
func (f Field) Valid() bool {
	return f >= FieldDate && f <= FieldAttachment
}

// String returns the column label.
func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldLabels[f]
}

// Row is one ledger row as stored: seven text cells.
type Row [FieldCount]string

// Get returns the cell for f.
func (r Row) Get(f Field) string {
	if !f.Valid() {
		return ""
	}
	return r[f]
}

// Date parses the date cell.
func (r Row) Date() (time.Time, error) {
	t, err := time.Parse(DateLayout, r[FieldDate])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, r[FieldDate])
	}
	return t, nil
}

// Amount parses the amount cell. Any decimal the ledger holds is accepted,
// so rows written by other tools still aggregate.
func (r Row) Amount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(r[FieldAmount])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, r[FieldAmount])
	}
	return amount, nil
}

// DisplayAmount renders the amount with two fraction digits, or the raw
// cell when it does not parse.
func (r Row) DisplayAmount() string {
	amount, err := r.Amount()
	if err != nil {
		return r[FieldAmount]
	}
	return amount.StringFixed(2)
}
