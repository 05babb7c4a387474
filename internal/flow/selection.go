package flow

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/report"
)

// openSelection loads the latest records offered for edit or delete.
func (m *Machine) openSelection(ctx context.Context, s *Session, next State, empty string) outcome {
	records, err := m.loadRecords(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Stringer("state", next).Msg("Failed to load selection")
		return failMenu(msgLedgerDown)
	}
	if len(records) == 0 {
		return toMenu(empty)
	}
	s.Selection = report.Latest(records, report.SelectionLimit)
	return advance(next, "")
}

func (m *Machine) openEditSelect(ctx context.Context, s *Session, _ Event) outcome {
	return m.openSelection(ctx, s, StateEditSelect, msgNothingToEdit)
}

func (m *Machine) openDeleteSelect(ctx context.Context, s *Session, _ Event) outcome {
	return m.openSelection(ctx, s, StateDeleteSelect, msgNothingToDel)
}

// readSelected re-reads an offered row so the sub-flow starts from the
// ledger's current content.
func (m *Machine) readSelected(ctx context.Context, s *Session, row int) (models.Row, outcome, bool) {
	if _, ok := s.selected(row); !ok {
		logger.Log.Warn().Int("row", row).Msg("Row was not offered for selection")
		return models.Row{}, failMenu(msgLostContext), false
	}

	callCtx, cancel := m.external(ctx)
	defer cancel()

	current, err := m.ledger.GetRow(callCtx, row)
	if err != nil {
		logger.Log.Error().Err(err).Int("row", row).Msg("Failed to read selected row")
		return models.Row{}, failMenu(ledgerError(err)), false
	}
	return current, outcome{}, true
}

func (m *Machine) selectForEdit(ctx context.Context, s *Session, ev Event) outcome {
	row, failure, ok := m.readSelected(ctx, s, ev.Action.Row)
	if !ok {
		return failure
	}
	s.Edit = &EditContext{Row: ev.Action.Row, Original: row}
	return advance(StateEditField, "")
}

func (m *Machine) selectForDelete(ctx context.Context, s *Session, ev Event) outcome {
	row, failure, ok := m.readSelected(ctx, s, ev.Action.Row)
	if !ok {
		return failure
	}
	s.Delete = &DeleteContext{Row: ev.Action.Row, Original: row}
	return advance(StateDeleteConfirm, "")
}

func (m *Machine) confirmDelete(ctx context.Context, s *Session, _ Event) outcome {
	if s.Delete == nil {
		return failMenu(msgLostContext)
	}

	callCtx, cancel := m.external(ctx)
	defer cancel()

	if err := m.ledger.DeleteRow(callCtx, s.Delete.Row); err != nil {
		logger.Log.Error().Err(err).Int("row", s.Delete.Row).Msg("Failed to delete row")
		return failMenu(ledgerError(err))
	}

	logger.Log.Info().Int("row", s.Delete.Row).Msg("Row deleted")
	return toMenu(fmt.Sprintf("🗑️ <b>Deleted</b> row %d\n\n%s", s.Delete.Row, formatRow(s.Delete.Original)))
}

func (m *Machine) abortDelete(context.Context, *Session, Event) outcome {
	return toMenu(msgDeleteAborted)
}

// selectionButtons lists the offered records one per row.
func selectionButtons(records []report.Record) [][]Button {
	rows := make([][]Button, 0, len(records))
	for _, r := range records {
		place := strings.Join(strings.Fields(r.Row[models.FieldPlace]), " ")
		if place == "" {
			place = "—"
		}
		label := fmt.Sprintf("%s · %s · %s", strings.TrimSpace(r.Row[models.FieldDate]), place, r.Row.DisplayAmount())
		rows = append(rows, []Button{{Label: truncate(label, 60), Action: action.SelectRow(r.Index)}})
	}
	return rows
}
