package flow

import (
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/report"
)

// SearchPhase is the date a custom range search is waiting for.
type SearchPhase int

// Search phases.
const (
	SearchStart SearchPhase = iota
	SearchEnd
)

// EditContext is the row being edited.
type EditContext struct {
	Row      int
	Field    models.Field
	Original models.Row
}

// DeleteContext is the row pending deletion.
type DeleteContext struct {
	Row      int
	Original models.Row
}

// SearchContext collects a custom date range.
type SearchContext struct {
	Phase SearchPhase
	Start time.Time
}

// Session is the conversation state of one (chat, user) pair.
type Session struct {
	State State
	Draft models.Expense

	Edit   *EditContext
	Delete *DeleteContext
	Search *SearchContext

	// Month is the calendar month on display.
	Month time.Time
	// Selection holds the records offered on the last edit or delete picker.
	Selection []report.Record
	// Suggestion is the guessed category and tag for the draft's place.
	Suggestion *models.Suggestion
}

// NewSession returns a session sitting in MENU.
func NewSession() Session {
	return Session{State: StateMenu}
}

// reset clears every scratch field.
func (s *Session) reset() {
	*s = NewSession()
}

// selected returns the offered record with the given row index.
func (s *Session) selected(row int) (report.Record, bool) {
	for _, r := range s.Selection {
		if r.Index == row {
			return r, true
		}
	}
	return report.Record{}, false
}

// editingField reports whether an edit of field is in progress.
func (s *Session) editingField(field models.Field) bool {
	return s.Edit != nil && s.Edit.Field == field
}

// suggested returns the suggested value for a choice field, if any.
func (s *Session) suggested(field models.Field) string {
	if s.Suggestion == nil {
		return ""
	}
	switch field {
	case models.FieldCategory:
		return s.Suggestion.Category
	case models.FieldTag:
		return s.Suggestion.Tag
	}
	return ""
}
