package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/repository"
)

type inputMode int

const (
	inputCalendar inputMode = iota
	inputText
	inputChoice
	inputImage
)

// fieldPolicy describes how one column is asked for and validated. The
// same policies drive the new expense flow and the edit flow.
type fieldPolicy struct {
	mode    inputMode
	choices []string
	ask     string
	invalid string
}

var fieldPolicies = [models.FieldCount]fieldPolicy{
	models.FieldDate: {
		mode:    inputCalendar,
		ask:     msgManualDate,
		invalid: msgBadDate,
	},
	models.FieldPlace: {
		mode:    inputText,
		ask:     "Please enter the place/vendor:",
		invalid: "The place cannot be empty. Please enter the place/vendor:",
	},
	models.FieldAmount: {
		mode:    inputText,
		ask:     "Please enter the amount (numbers only, e.g. <code>12.50</code>):",
		invalid: "Please enter a valid positive number for the amount, e.g. <code>12.50</code>:",
	},
	models.FieldCategory: {
		mode:    inputChoice,
		choices: models.Categories,
		ask:     "Please select a category:",
		invalid: "Please select one of the categories below.",
	},
	models.FieldReceiptNumber: {
		mode:    inputText,
		ask:     "Please enter the receipt number:",
		invalid: "The receipt number cannot be empty. Please enter the receipt number:",
	},
	models.FieldTag: {
		mode:    inputChoice,
		choices: models.Tags,
		ask:     "Please select a tag:",
		invalid: "Please select one of the tags below.",
	},
	models.FieldAttachment: {
		mode:    inputImage,
		ask:     "Please upload a photo of your receipt (or type <code>skip</code> to skip):",
		invalid: "Please upload a photo or type <code>skip</code>. Send the receipt as an image:",
	},
}

var (
	errEmptyValue = errors.New("empty value")
	errNotAChoice = errors.New("not one of the choices")
	errNeedImage  = errors.New("image expected")
)

// ParseValue validates text entered for field and returns the cell value
// to store. Amounts come back with two fraction digits.
func ParseValue(field models.Field, text string, now time.Time) (string, error) {
	if !field.Valid() {
		return "", fmt.Errorf("unknown field %s", field)
	}
	text = strings.TrimSpace(text)

	switch field {
	case models.FieldDate:
		date, err := models.ParseDate(text, now)
		if err != nil {
			return "", err
		}
		return models.FormatDate(date), nil
	case models.FieldAmount:
		amount, err := models.ParseAmount(text)
		if err != nil {
			return "", err
		}
		return amount.StringFixed(2), nil
	case models.FieldAttachment:
		if strings.EqualFold(text, models.SkipKeyword) {
			return models.AttachmentNone, nil
		}
		return "", errNeedImage
	}

	policy := fieldPolicies[field]
	if policy.mode == inputChoice {
		for _, choice := range policy.choices {
			if strings.EqualFold(choice, text) {
				return choice, nil
			}
		}
		return "", fmt.Errorf("%w: %q", errNotAChoice, text)
	}

	if text == "" {
		return "", errEmptyValue
	}
	return text, nil
}

// choiceButtons lays out the options of an enumerated field two per row.
func choiceButtons(field models.Field) [][]Button {
	var rows [][]Button
	current := make([]Button, 0, 2)
	for _, choice := range fieldPolicies[field].choices {
		current = append(current, Button{Label: choice, Action: choiceAction(field, choice)})
		if len(current) == 2 {
			rows = append(rows, current)
			current = make([]Button, 0, 2)
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return rows
}

func choiceAction(field models.Field, choice string) action.Action {
	if field == models.FieldTag {
		return action.Tag(choice)
	}
	return action.Category(choice)
}

// beginEdit moves to the input step for the chosen field.
func (m *Machine) beginEdit(_ context.Context, s *Session, ev Event) outcome {
	if s.Edit == nil {
		return failMenu(msgLostContext)
	}
	s.Edit.Field = ev.Action.Field
	if fieldPolicies[s.Edit.Field].mode == inputCalendar {
		s.Month = monthOf(m.now())
		return advance(StateCalendarMonth, "")
	}
	return advance(StateEditValue, "")
}

// editText handles a typed value on the edit value step.
func (m *Machine) editText(ctx context.Context, s *Session, ev Event) outcome {
	if s.Edit == nil {
		return failMenu(msgLostContext)
	}
	value, err := ParseValue(s.Edit.Field, ev.Text, m.now())
	if err != nil {
		return stay(fieldPolicies[s.Edit.Field].invalid)
	}
	return m.commitEdit(ctx, s, value)
}

// editChoice handles a category, tag or skip button on the edit value step.
func (m *Machine) editChoice(ctx context.Context, s *Session, ev Event) outcome {
	if s.Edit == nil {
		return failMenu(msgLostContext)
	}
	var (
		text  string
		field models.Field
		ok    bool
	)
	switch ev.Action.Kind {
	case action.KindCategory:
		field, text, ok = models.FieldCategory, ev.Action.Value, true
	case action.KindTag:
		field, text, ok = models.FieldTag, ev.Action.Value, true
	case action.KindSkip:
		field, text, ok = models.FieldAttachment, models.SkipKeyword, true
	}
	if !ok || field != s.Edit.Field {
		logger.Log.Warn().
			Str("data", ev.Action.Raw).
			Stringer("action", ev.Action.Kind).
			Stringer("field", s.Edit.Field).
			Msg("Choice does not match the edited field")
		return failMenu(msgUnrouted)
	}
	value, err := ParseValue(s.Edit.Field, text, m.now())
	if err != nil {
		return stay(fieldPolicies[s.Edit.Field].invalid)
	}
	return m.commitEdit(ctx, s, value)
}

// editImage replaces the receipt of the row being edited. A failed upload
// leaves the row untouched.
func (m *Machine) editImage(ctx context.Context, s *Session, ev Event) outcome {
	if s.Edit == nil {
		return failMenu(msgLostContext)
	}
	if s.Edit.Field != models.FieldAttachment {
		return stay(msgNoImageHere)
	}
	name := receiptName(s.Edit.Original[models.FieldDate], s.Edit.Original[models.FieldPlace])
	file, err := m.storeImage(ctx, ev.Image, name)
	if err != nil {
		logger.Log.Error().Err(err).Int("row", s.Edit.Row).Msg("Failed to replace receipt image")
		return failMenu(msgUploadAborted)
	}
	return m.commitEdit(ctx, s, file.Link)
}

// commitEdit writes one cell and shows the row as read back from the ledger.
func (m *Machine) commitEdit(ctx context.Context, s *Session, value string) outcome {
	edit := s.Edit
	if edit == nil {
		return failMenu(msgLostContext)
	}

	callCtx, cancel := m.external(ctx)
	defer cancel()

	if err := m.ledger.UpdateCell(callCtx, edit.Row, edit.Field, value); err != nil {
		logger.Log.Error().Err(err).Int("row", edit.Row).Stringer("field", edit.Field).Msg("Failed to update cell")
		return failMenu(ledgerError(err))
	}

	row, err := m.ledger.GetRow(callCtx, edit.Row)
	if err != nil {
		logger.Log.Error().Err(err).Int("row", edit.Row).Msg("Failed to re-read edited row")
		return failMenu(ledgerError(err))
	}

	logger.Log.Info().Int("row", edit.Row).Stringer("field", edit.Field).Msg("Cell updated")
	return toMenu(fmt.Sprintf("✅ <b>%s updated</b> (row %d)\n\n%s",
		escapeHTML(edit.Field.String()), edit.Row, formatRow(row)))
}

func ledgerError(err error) string {
	if errors.Is(err, repository.ErrRowNotFound) || errors.Is(err, repository.ErrHeaderRow) {
		return msgRowGone
	}
	return msgLedgerDown
}
