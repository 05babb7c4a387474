package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/report"
)

// prompt renders the question asked in the session's current state.
func (m *Machine) prompt(s *Session) Reply {
	switch s.State {
	case StateMenu:
		return Reply{Text: msgMenu, Buttons: menuButtons()}

	case StateCalendarMonth:
		text := msgMonthPicker
		if s.Edit != nil {
			text = fmt.Sprintf("✏️ Editing the date of row %d.\n\n%s", s.Edit.Row, text)
		}
		return withNav(Reply{Text: text, Buttons: monthPickerButtons(m.now())})

	case StateCalendarDay:
		month := s.Month
		if month.IsZero() {
			month = monthOf(m.now())
		}
		title, buttons, err := calendarButtons(month)
		if err != nil {
			logger.Log.Error().Err(err).Time("month", month).Msg("Failed to build calendar")
			return withNav(Reply{Text: msgManualDate})
		}
		return withNav(Reply{Text: fmt.Sprintf("📅 <b>%s</b>\nPick a day:", title), Buttons: buttons})

	case StateDate, StatePlace, StateAmount, StateCategory, StateReceiptNumber, StateTag, StateReceiptUpload:
		field := entryFields[s.State]
		r := Reply{Text: fieldPolicies[field].ask, Buttons: fieldButtons(field)}
		if hint := s.suggested(field); hint != "" {
			r.Text = fmt.Sprintf("💡 Suggested: <b>%s</b>\n%s", escapeHTML(hint), r.Text)
			r.Buttons = append([][]Button{{{Label: "💡 " + hint, Action: choiceAction(field, hint)}}}, r.Buttons...)
		}
		return withNav(r)

	case StateViewDateRange:
		return withNav(Reply{
			Text: "🔎 <b>View by date</b>\nPick a range:",
			Buttons: [][]Button{
				{
					{Label: "Today", Action: action.RangePreset(action.PresetToday)},
					{Label: "This week", Action: action.RangePreset(action.PresetWeek)},
				},
				{
					{Label: "This month", Action: action.RangePreset(action.PresetMonth)},
					{Label: "Custom range", Action: action.RangePreset(action.PresetCustom)},
				},
			},
		})

	case StateSearchDateRange:
		if s.Search != nil && s.Search.Phase == SearchEnd {
			return withNav(Reply{Text: fmt.Sprintf(
				"Start date: <b>%s</b>\nNow send the <b>end</b> date (YYYY.MM.DD) or <code>today</code>:",
				models.FormatDate(s.Search.Start))})
		}
		return withNav(Reply{Text: "Send the <b>start</b> date (YYYY.MM.DD) or <code>today</code>:"})

	case StateEditSelect:
		return withNav(Reply{Text: "✏️ <b>Select the expense to edit</b>", Buttons: selectionButtons(s.Selection)})

	case StateEditField:
		if s.Edit == nil {
			break
		}
		return withNav(Reply{
			Text:    fmt.Sprintf("✏️ <b>Editing row %d</b>\n\n%s\n\nWhich field do you want to change?", s.Edit.Row, formatRow(s.Edit.Original)),
			Buttons: editFieldButtons(),
		})

	case StateEditValue:
		if s.Edit == nil {
			break
		}
		field := s.Edit.Field
		return withNav(Reply{
			Text: fmt.Sprintf("✏️ Editing <b>%s</b> of row %d (current: %s)\n\n%s",
				escapeHTML(field.String()), s.Edit.Row, escapeHTML(s.Edit.Original.Get(field)), fieldPolicies[field].ask),
			Buttons: fieldButtons(field),
		})

	case StateDeleteSelect:
		return withNav(Reply{Text: "🗑️ <b>Select the expense to delete</b>", Buttons: selectionButtons(s.Selection)})

	case StateDeleteConfirm:
		if s.Delete == nil {
			break
		}
		return withNav(Reply{
			Text: fmt.Sprintf("🗑️ <b>Delete row %d?</b>\n\n%s", s.Delete.Row, formatRow(s.Delete.Original)),
			Buttons: [][]Button{{
				{Label: "✅ Yes, delete", Action: action.Confirm()},
				{Label: "❌ No", Action: action.Abort()},
			}},
		})
	}

	return withNav(Reply{Text: msgPickFromMenu})
}

func menuButtons() [][]Button {
	return [][]Button{
		{{Label: "➕ New expense", Action: action.NewExpense()}},
		{
			{Label: "🧾 Latest", Action: action.List()},
			{Label: "🔎 By date", Action: action.ViewByDate()},
		},
		{
			{Label: "✏️ Edit", Action: action.Edit()},
			{Label: "🗑️ Delete", Action: action.Delete()},
		},
		{{Label: "📈 Summary", Action: action.Summary()}},
	}
}

func withNav(r Reply) Reply {
	r.Buttons = append(r.Buttons, []Button{
		{Label: "⬅️ Back", Action: action.Back()},
		{Label: "🏠 Menu", Action: action.Menu()},
	})
	return r
}

func fieldButtons(field models.Field) [][]Button {
	switch fieldPolicies[field].mode {
	case inputChoice:
		return choiceButtons(field)
	case inputImage:
		return [][]Button{{{Label: "⏭️ Skip", Action: action.Skip()}}}
	}
	return nil
}

func editFieldButtons() [][]Button {
	var rows [][]Button
	current := make([]Button, 0, 2)
	for _, f := range models.Fields {
		current = append(current, Button{Label: f.String(), Action: action.EditField(f)})
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

// formatRow prints every column of a row.
func formatRow(row models.Row) string {
	return fmt.Sprintf("📅 %s\n📍 %s\n💰 %s\n📁 %s\n🧾 %s\n🏷️ %s\n📎 %s",
		escapeHTML(row[models.FieldDate]),
		escapeHTML(row[models.FieldPlace]),
		escapeHTML(row.DisplayAmount()),
		escapeHTML(row[models.FieldCategory]),
		escapeHTML(row[models.FieldReceiptNumber]),
		escapeHTML(row[models.FieldTag]),
		formatAttachment(row[models.FieldAttachment]),
	)
}

// formatLine prints a record as a two-line listing entry.
func formatLine(r report.Record) string {
	return fmt.Sprintf("<b>#%d</b> %s · %s · <b>%s</b>\n<i>%s · %s</i> %s",
		r.Index,
		escapeHTML(r.Row[models.FieldDate]),
		escapeHTML(r.Row[models.FieldPlace]),
		escapeHTML(r.Row.DisplayAmount()),
		escapeHTML(r.Row[models.FieldCategory]),
		escapeHTML(r.Row[models.FieldTag]),
		formatAttachment(r.Row[models.FieldAttachment]),
	)
}

func formatAttachment(value string) string {
	if strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://") {
		return fmt.Sprintf(`<a href="%s">receipt</a>`, escapeAttr(value))
	}
	return escapeHTML(value)
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeHTML(s), `"`, "&quot;")
}

func joinNotices(notices ...string) string {
	var parts []string
	for _, n := range notices {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "\n\n")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
