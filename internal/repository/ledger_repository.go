// Package repository stores ledger rows.
//
// A ledger is addressed like a spreadsheet: rows are numbered from 1 and
// row 1 is the header. Data rows keep their insertion order, so deleting a
// row shifts every later row up by one.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/ledger-bot/internal/database"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

var (
	// ErrRowNotFound is returned for a row index past the end of the ledger.
	ErrRowNotFound = errors.New("ledger row not found")
	// ErrHeaderRow is returned when a write targets the header row.
	ErrHeaderRow = errors.New("header row is read-only")
)

// firstDataRow is the index of the first row after the header.
const firstDataRow = 2

var columns = [models.FieldCount]string{
	models.FieldDate:          "date",
	models.FieldPlace:         "place",
	models.FieldAmount:        "amount",
	models.FieldCategory:      "category",
	models.FieldReceiptNumber: "receipt_number",
	models.FieldTag:           "tag",
	models.FieldAttachment:    "receipt",
}

const selectColumns = `date, place, amount, category, receipt_number, tag, receipt`

// LedgerRepository keeps the ledger in PostgreSQL.
type LedgerRepository struct {
	db database.PGXDB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db database.PGXDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AppendRow adds a row at the end and returns its index.
func (r *LedgerRepository) AppendRow(ctx context.Context, row models.Row) (int, error) {
	var index int
	err := r.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO ledger_rows (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		)
		SELECT COUNT(l.id) + $8
		FROM inserted
		LEFT JOIN ledger_rows l ON l.id < inserted.id
	`, row[0], row[1], row[2], row[3], row[4], row[5], row[6], firstDataRow).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("failed to append row: %w", err)
	}
	return index, nil
}

// GetAllRows returns the header followed by every data row in order.
func (r *LedgerRepository) GetAllRows(ctx context.Context) ([]models.Row, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM ledger_rows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	defer rows.Close()

	result := []models.Row{models.HeaderRow}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return result, nil
}

// GetRow returns the row at index. Index 1 is the header.
func (r *LedgerRepository) GetRow(ctx context.Context, index int) (models.Row, error) {
	if index == 1 {
		return models.HeaderRow, nil
	}
	if index < firstDataRow {
		return models.Row{}, fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}

	row, err := scanRow(r.db.QueryRow(ctx, `
		SELECT `+selectColumns+` FROM ledger_rows
		ORDER BY id OFFSET $1 LIMIT 1
	`, index-firstDataRow))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Row{}, fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}
	if err != nil {
		return models.Row{}, fmt.Errorf("failed to get row %d: %w", index, err)
	}
	return row, nil
}

// UpdateCell overwrites a single cell.
func (r *LedgerRepository) UpdateCell(ctx context.Context, index int, field models.Field, value string) error {
	if err := checkWritable(index); err != nil {
		return err
	}
	if !field.Valid() {
		return fmt.Errorf("unknown field %s", field)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE ledger_rows SET `+columns[field]+` = $1, updated_at = NOW()
		WHERE id = (SELECT id FROM ledger_rows ORDER BY id OFFSET $2 LIMIT 1)
	`, value, index-firstDataRow)
	if err != nil {
		return fmt.Errorf("failed to update row %d: %w", index, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}
	return nil
}

// DeleteRow removes the row at index. Later rows move up by one.
func (r *LedgerRepository) DeleteRow(ctx context.Context, index int) error {
	if err := checkWritable(index); err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		DELETE FROM ledger_rows
		WHERE id = (SELECT id FROM ledger_rows ORDER BY id OFFSET $1 LIMIT 1)
	`, index-firstDataRow)
	if err != nil {
		return fmt.Errorf("failed to delete row %d: %w", index, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}
	return nil
}

func checkWritable(index int) error {
	if index == 1 {
		return ErrHeaderRow
	}
	if index < firstDataRow {
		return fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}
	return nil
}

func scanRow(row pgx.Row) (models.Row, error) {
	var out models.Row
	err := row.Scan(&out[0], &out[1], &out[2], &out[3], &out[4], &out[5], &out[6])
	return out, err
}
