package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// MemoryLedger is a process-local ledger with the same row semantics as
// LedgerRepository. It is used when no database is configured.
type MemoryLedger struct {
	mu   sync.RWMutex
	rows []models.Row
}

// NewMemoryLedger creates a ledger holding the given data rows.
func NewMemoryLedger(rows ...models.Row) *MemoryLedger {
	return &MemoryLedger{rows: slices.Clone(rows)}
}

// AppendRow adds a row at the end and returns its index.
func (l *MemoryLedger) AppendRow(ctx context.Context, row models.Row) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rows = append(l.rows, row)
	return len(l.rows) + firstDataRow - 1, nil
}

// GetAllRows returns the header followed by every data row in order.
func (l *MemoryLedger) GetAllRows(ctx context.Context) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]models.Row, 0, len(l.rows)+1)
	result = append(result, models.HeaderRow)
	return append(result, l.rows...), nil
}

// GetRow returns the row at index. Index 1 is the header.
func (l *MemoryLedger) GetRow(ctx context.Context, index int) (models.Row, error) {
	if err := ctx.Err(); err != nil {
		return models.Row{}, err
	}
	if index == 1 {
		return models.HeaderRow, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, err := l.position(index)
	if err != nil {
		return models.Row{}, err
	}
	return l.rows[pos], nil
}

// UpdateCell overwrites a single cell.
func (l *MemoryLedger) UpdateCell(ctx context.Context, index int, field models.Field, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkWritable(index); err != nil {
		return err
	}
	if !field.Valid() {
		return fmt.Errorf("unknown field %s", field)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, err := l.position(index)
	if err != nil {
		return err
	}
	l.rows[pos][field] = value
	return nil
}

// DeleteRow removes the row at index. Later rows move up by one.
func (l *MemoryLedger) DeleteRow(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkWritable(index); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, err := l.position(index)
	if err != nil {
		return err
	}
	l.rows = slices.Delete(l.rows, pos, pos+1)
	return nil
}

// Len returns the number of data rows.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rows)
}

// position maps a row index to a slice offset. Caller holds the lock.
func (l *MemoryLedger) position(index int) (int, error) {
	pos := index - firstDataRow
	if pos < 0 || pos >= len(l.rows) {
		return 0, fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}
	return pos, nil
}
