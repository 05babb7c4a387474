package flow

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/calendar"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// entryFields maps the entry states to the column they collect.
var entryFields = map[State]models.Field{
	StateDate:          models.FieldDate,
	StatePlace:         models.FieldPlace,
	StateAmount:        models.FieldAmount,
	StateCategory:      models.FieldCategory,
	StateReceiptNumber: models.FieldReceiptNumber,
	StateTag:           models.FieldTag,
	StateReceiptUpload: models.FieldAttachment,
}

func nextEntryState(state State) (State, bool) {
	for _, step := range entrySteps {
		if step.state == state {
			return step.next, true
		}
	}
	return 0, false
}

// startEntry begins a new expense with an empty draft.
func (m *Machine) startEntry(_ context.Context, s *Session, _ Event) outcome {
	s.reset()
	s.Month = monthOf(m.now())
	return advance(StateCalendarMonth, "")
}

func (m *Machine) pickMonth(_ context.Context, s *Session, ev Event) outcome {
	s.Month = time.Date(ev.Action.Year, ev.Action.Month, 1, 0, 0, 0, 0, time.UTC)
	return advance(StateCalendarDay, "")
}

func (m *Machine) pickToday(ctx context.Context, s *Session, _ Event) outcome {
	return m.acceptDate(ctx, s, models.FormatDate(m.now()))
}

func (m *Machine) manualDate(context.Context, *Session, Event) outcome {
	return advance(StateDate, "")
}

func (m *Machine) pickDay(ctx context.Context, s *Session, ev Event) outcome {
	return m.acceptDate(ctx, s, ev.Action.Date)
}

func (m *Machine) blankDay(context.Context, *Session, Event) outcome {
	return stay(msgPickDay)
}

// dateText accepts a typed date on any of the date steps.
func (m *Machine) dateText(ctx context.Context, s *Session, ev Event) outcome {
	value, err := ParseValue(models.FieldDate, ev.Text, m.now())
	if err != nil {
		return stay(msgBadDate)
	}
	return m.acceptDate(ctx, s, value)
}

// acceptDate stores a picked date. When the date column of an existing row
// is being edited the value is committed instead.
func (m *Machine) acceptDate(ctx context.Context, s *Session, value string) outcome {
	if s.editingField(models.FieldDate) {
		return m.commitEdit(ctx, s, value)
	}
	if err := s.Draft.Set(models.FieldDate, value); err != nil {
		return stay(msgBadDate)
	}
	return advance(StatePlace, fmt.Sprintf("Date set to <b>%s</b>.", value))
}

// entryText handles typed input on the free-form entry steps.
func (m *Machine) entryText(ctx context.Context, s *Session, ev Event) outcome {
	return m.acceptEntry(ctx, s, ev.Text)
}

// entryChoice handles a category or tag button.
func (m *Machine) entryChoice(ctx context.Context, s *Session, ev Event) outcome {
	return m.acceptEntry(ctx, s, ev.Action.Value)
}

func (m *Machine) acceptEntry(ctx context.Context, s *Session, text string) outcome {
	field, ok := entryFields[s.State]
	if !ok {
		return failMenu(msgLostContext)
	}
	next, ok := nextEntryState(s.State)
	if !ok {
		return failMenu(msgLostContext)
	}

	value, err := ParseValue(field, text, m.now())
	if err != nil {
		return stay(fieldPolicies[field].invalid)
	}
	if err := s.Draft.Set(field, value); err != nil {
		return stay(fieldPolicies[field].invalid)
	}
	if field == models.FieldPlace {
		s.Suggestion = m.suggest(ctx, value)
	}
	return advance(next, fmt.Sprintf("%s set to <b>%s</b>.", field, escapeHTML(value)))
}

// suggestionThreshold is the confidence below which a suggestion is dropped.
const suggestionThreshold = 0.5

// suggest asks the suggester about place. Failures only cost the hint.
func (m *Machine) suggest(ctx context.Context, place string) *models.Suggestion {
	if m.suggester == nil {
		return nil
	}

	callCtx, cancel := m.external(ctx)
	defer cancel()

	suggestion, err := m.suggester.Suggest(callCtx, place)
	if err != nil {
		logger.Log.Debug().Err(err).Msg("No category suggestion")
		return nil
	}
	if suggestion.Confidence < suggestionThreshold {
		return nil
	}
	return &suggestion
}

func (m *Machine) receiptText(ctx context.Context, s *Session, ev Event) outcome {
	value, err := ParseValue(models.FieldAttachment, ev.Text, m.now())
	if err != nil {
		return stay(fieldPolicies[models.FieldAttachment].invalid)
	}
	s.Draft.Attachment = value
	return m.finishEntry(ctx, s, "")
}

func (m *Machine) skipReceipt(ctx context.Context, s *Session, _ Event) outcome {
	s.Draft.Attachment = models.AttachmentNone
	return m.finishEntry(ctx, s, "")
}

// receiptImage uploads the receipt photo. A failed upload is recorded with
// the failure sentinel and the expense is still saved.
func (m *Machine) receiptImage(ctx context.Context, s *Session, ev Event) outcome {
	if _, missing := s.Draft.Missing(); missing {
		return failMenu(msgLostContext)
	}

	name := receiptName(models.FormatDate(s.Draft.Date), s.Draft.Place)
	file, err := m.storeImage(ctx, ev.Image, name)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to upload receipt")
		s.Draft.Attachment = models.AttachmentFailed
		return m.finishEntry(ctx, s, msgUploadFailed)
	}

	logger.Log.Info().Str("file_id", file.ID).Msg("Receipt uploaded")
	s.Draft.Attachment = file.Link
	return m.finishEntry(ctx, s, "")
}

// finishEntry appends the draft as one row. The flow always ends in MENU,
// which drops the draft whether or not the append succeeded.
func (m *Machine) finishEntry(ctx context.Context, s *Session, warning string) outcome {
	row, err := s.Draft.Row()
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Draft incomplete at receipt step")
		return failMenu(msgLostContext)
	}

	callCtx, cancel := m.external(ctx)
	defer cancel()

	index, err := m.ledger.AppendRow(callCtx, row)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to append expense")
		return failMenu(joinNotices(warning, msgSaveFailed))
	}

	logger.Log.Info().Int("row", index).Str("category", row[models.FieldCategory]).Msg("Expense saved")

	receipt := "No receipt uploaded."
	switch row[models.FieldAttachment] {
	case models.AttachmentNone:
	case models.AttachmentFailed:
		receipt = "Receipt upload failed."
	default:
		receipt = "Receipt uploaded and linked in the ledger."
	}
	saved := fmt.Sprintf("✅ <b>Expense saved</b> (row %d)\n\n%s\n\n%s", index, formatRow(row), receipt)
	return toMenu(joinNotices(warning, saved))
}

// calendarButtons renders the day grid for the session month.
func calendarButtons(month time.Time) (string, [][]Button, error) {
	grid, err := calendar.Build(month.Year(), month.Month())
	if err != nil {
		return "", nil, err
	}

	rows := make([][]Button, 0, len(grid.Weeks)+2)
	header := make([]Button, 0, calendar.DaysPerWeek)
	for _, label := range calendar.WeekdayLabels {
		header = append(header, Button{Label: label, Action: action.Blank()})
	}
	rows = append(rows, header)

	for _, week := range grid.Weeks {
		row := make([]Button, 0, calendar.DaysPerWeek)
		for _, cell := range week {
			if cell.Blank() {
				row = append(row, Button{Label: " ", Action: action.Blank()})
				continue
			}
			row = append(row, Button{Label: fmt.Sprint(cell.Day), Action: action.Day(cell.Date)})
		}
		for len(row) < calendar.DaysPerWeek {
			row = append(row, Button{Label: " ", Action: action.Blank()})
		}
		rows = append(rows, row)
	}

	rows = append(rows, []Button{
		{Label: "« " + grid.Prev.Format("Jan"), Action: action.Month(grid.Prev.Year(), grid.Prev.Month())},
		{Label: grid.Next.Format("Jan") + " »", Action: action.Month(grid.Next.Year(), grid.Next.Month())},
	})
	return grid.Title(), rows, nil
}

// monthPickerButtons offers the current and five preceding months.
func monthPickerButtons(now time.Time) [][]Button {
	var rows [][]Button
	current := make([]Button, 0, 3)
	for _, month := range calendar.MonthChoices(now, 6) {
		current = append(current, Button{
			Label:  month.Format("Jan 2006"),
			Action: action.Month(month.Year(), month.Month()),
		})
		if len(current) == 3 {
			rows = append(rows, current)
			current = make([]Button, 0, 3)
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return append(rows, []Button{
		{Label: "📍 Today", Action: action.Today()},
		{Label: "⌨️ Type date", Action: action.ManualDate()},
	})
}
