package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/report"
	"pgregory.net/rapid"
)

func seededEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, sampleRow("A"), sampleRow("B"), sampleRow("C"))
}

// openEdit selects row and field on a fresh edit flow.
func (e *testEnv) openEdit(row int, field models.Field) Reply {
	e.t.Helper()
	e.press(action.Edit())
	e.press(action.SelectRow(row))
	return e.press(action.EditField(field))
}

func TestEdit_SelectionOffersLatestRows(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)

	r := env.press(action.Edit())
	require.Equal(t, StateEditSelect, env.state())
	require.Contains(t, r.Text, "Select the expense to edit")

	var rows []int
	for _, row := range r.Buttons {
		for _, b := range row {
			if b.Action.Kind == action.KindSelectRow {
				rows = append(rows, b.Action.Row)
			}
		}
	}
	require.Equal(t, []int{4, 3, 2}, rows)

	r = env.press(action.SelectRow(3))
	require.Equal(t, StateEditField, env.state())
	require.Contains(t, r.Text, "Editing row 3")
	require.Contains(t, r.Text, "📍 B")
	require.Equal(t, len(models.Fields), countAction(r.Buttons, action.KindEditField))
}

func TestSelectionLabels(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, sampleRow("  Cafe \n Noir "), sampleRow("   "))

	r := env.press(action.Delete())
	labels := map[int]string{}
	for _, row := range r.Buttons {
		for _, b := range row {
			if b.Action.Kind == action.KindSelectRow {
				labels[b.Action.Row] = b.Label
			}
		}
	}
	require.Equal(t, "2025.01.01 · Cafe Noir · 12.50", labels[2])
	require.Equal(t, "2025.01.01 · — · 12.50", labels[3])
}

func TestEdit_SelectionCapped(t *testing.T) {
	t.Parallel()
	var seed []models.Row
	for i := range 15 {
		seed = append(seed, sampleRow(fmt.Sprintf("P%d", i)))
	}
	env := newTestEnv(t, seed...)

	r := env.press(action.Delete())
	require.Equal(t, report.SelectionLimit, countAction(r.Buttons, action.KindSelectRow))
	require.True(t, hasAction(r.Buttons, action.SelectRow(16)))
	require.False(t, hasAction(r.Buttons, action.SelectRow(6)))
}

func TestEdit_TextField(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)

	r := env.openEdit(3, models.FieldAmount)
	require.Equal(t, StateEditValue, env.state())
	require.Contains(t, r.Text, "Editing <b>Amount</b> of row 3 (current: 12.5)")

	r = env.say("abc")
	require.Equal(t, StateEditValue, env.state())
	require.Contains(t, r.Text, "valid positive number")

	r = env.say("20")
	require.Equal(t, StateMenu, env.state())
	require.Contains(t, r.Text, "✅ <b>Amount updated</b> (row 3)")
	require.Contains(t, r.Text, "💰 20.00")

	rows := env.rows()
	want := sampleRow("B")
	want[models.FieldAmount] = "20.00"
	require.Equal(t, want, rows[1])
	require.Equal(t, sampleRow("A"), rows[0])
	require.Equal(t, sampleRow("C"), rows[2])
}

func TestEdit_ChoiceFields(t *testing.T) {
	t.Parallel()

	t.Run("category button", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		r := env.openEdit(2, models.FieldCategory)
		require.Equal(t, len(models.Categories), countAction(r.Buttons, action.KindCategory))

		env.press(action.Category("Electronics"))
		require.Equal(t, StateMenu, env.state())
		require.Equal(t, "Electronics", env.rows()[0][models.FieldCategory])
	})

	t.Run("tag typed", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.openEdit(4, models.FieldTag)

		r := env.say("Holiday")
		require.Equal(t, StateEditValue, env.state())
		require.Contains(t, r.Text, "one of the tags")

		env.say("entertainment")
		require.Equal(t, "Entertainment", env.rows()[2][models.FieldTag])
	})
}

func TestEdit_ChoiceForAnotherField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field models.Field
		press action.Action
	}{
		{"tag while editing category", models.FieldCategory, action.Tag("Gift")},
		{"tag while editing place", models.FieldPlace, action.Tag("Gift")},
		{"category while editing tag", models.FieldTag, action.Category("Food")},
		{"skip while editing place", models.FieldPlace, action.Skip()},
		{"skip while editing category", models.FieldCategory, action.Skip()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := seededEnv(t)
			env.openEdit(2, tt.field)

			r := env.press(tt.press)
			require.Equal(t, StateMenu, env.state())
			require.Contains(t, r.Text, msgUnrouted)
			require.NotContains(t, r.Text, msgUseButtons)
			require.Equal(t, []models.Row{sampleRow("A"), sampleRow("B"), sampleRow("C")}, env.rows())
			require.Zero(t, env.ledger.updates)
		})
	}
}

func TestEdit_DateViaCalendar(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)

	r := env.openEdit(3, models.FieldDate)
	require.Equal(t, StateCalendarMonth, env.state())
	require.Contains(t, r.Text, "Editing the date of row 3")

	env.press(action.Month(2024, time.December))
	r = env.press(action.Day("2024.12.24"))
	require.Equal(t, StateMenu, env.state())
	require.Contains(t, r.Text, "<b>Date updated</b> (row 3)")

	rows := env.rows()
	require.Len(t, rows, 3)
	require.Equal(t, "2024.12.24", rows[1][models.FieldDate])
}

func TestEdit_DateTyped(t *testing.T) {
	t.Parallel()

	t.Run("on the month picker", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.openEdit(2, models.FieldDate)
		env.say("2024.11.11")
		require.Equal(t, StateMenu, env.state())
		require.Equal(t, "2024.11.11", env.rows()[0][models.FieldDate])
	})

	t.Run("on the manual step", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.openEdit(2, models.FieldDate)
		env.press(action.ManualDate())
		require.Equal(t, StateDate, env.state())

		env.say("today")
		require.Equal(t, "2025.01.15", env.rows()[0][models.FieldDate])
		require.Len(t, env.rows(), 3)
	})
}

func TestEdit_BackNavigation(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)

	env.openEdit(3, models.FieldDate)
	env.press(action.Back())
	require.Equal(t, StateEditField, env.state())

	env.press(action.EditField(models.FieldDate))
	env.press(action.ManualDate())
	env.press(action.Back())
	require.Equal(t, StateEditField, env.state())

	env.press(action.EditField(models.FieldPlace))
	env.press(action.Back())
	require.Equal(t, StateEditField, env.state())

	r := env.press(action.Back())
	require.Equal(t, StateEditSelect, env.state())
	require.True(t, hasAction(r.Buttons, action.SelectRow(3)))

	env.press(action.Back())
	require.Equal(t, StateMenu, env.state())
	require.Equal(t, 0, env.ledger.updates)
}

func TestEdit_ReceiptImage(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)
	env.openEdit(3, models.FieldAttachment)

	r := env.photo("photo-1")
	require.Equal(t, StateMenu, env.state())
	require.Contains(t, r.Text, "<b>Receipt updated</b> (row 3)")
	require.Equal(t, "https://files.example/Receipt_2025.01.01_B", env.rows()[1][models.FieldAttachment])
}

func TestEdit_ReceiptSkip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.Row{"2025.01.01", "A", "1", "Food", "R1", "Gift", "https://files.example/old"})
	env.openEdit(2, models.FieldAttachment)

	env.press(action.Skip())
	require.Equal(t, models.AttachmentNone, env.rows()[0][models.FieldAttachment])
}

func TestEdit_ReceiptUploadFailureLeavesRow(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)
	env.attachments.err = errBoom
	env.openEdit(3, models.FieldAttachment)

	r := env.photo("photo-1")
	require.Equal(t, StateMenu, env.state())
	require.Contains(t, r.Text, msgUploadAborted)
	require.Equal(t, 0, env.ledger.updates)
	require.Equal(t, sampleRow("B"), env.rows()[1])
}

func TestEdit_PhotoForTextField(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)
	env.openEdit(3, models.FieldPlace)

	r := env.photo("photo-1")
	require.Equal(t, StateEditValue, env.state())
	require.Contains(t, r.Text, msgNoImageHere)
}

func TestEdit_Failures(t *testing.T) {
	t.Parallel()

	t.Run("nothing to edit", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		r := env.press(action.Edit())
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgNothingToEdit)
	})

	t.Run("ledger unreadable", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.ledger.readErr = errBoom
		r := env.press(action.Edit())
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgLedgerDown)
	})

	t.Run("row not offered", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.press(action.Edit())
		r := env.press(action.SelectRow(9))
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgLostContext)
	})

	t.Run("row deleted meanwhile", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.openEdit(4, models.FieldPlace)
		require.NoError(t, env.ledger.MemoryLedger.DeleteRow(context.Background(), 4))

		r := env.say("X")
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgRowGone)
	})

	t.Run("update fails", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.openEdit(2, models.FieldPlace)
		env.ledger.updateErr = errBoom

		r := env.say("X")
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgLedgerDown)
		require.Equal(t, "A", env.rows()[0][models.FieldPlace])
	})

	t.Run("selected row unreadable", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.press(action.Edit())
		env.ledger.getErr = errBoom
		r := env.press(action.SelectRow(2))
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgLedgerDown)
	})
}

func TestDelete_ShiftsLaterRows(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)

	r := env.press(action.Delete())
	require.Equal(t, StateDeleteSelect, env.state())
	require.Contains(t, r.Text, "Select the expense to delete")

	r = env.press(action.SelectRow(3))
	require.Equal(t, StateDeleteConfirm, env.state())
	require.Contains(t, r.Text, "Delete row 3?")
	require.Contains(t, r.Text, "📍 B")
	require.True(t, hasAction(r.Buttons, action.Confirm()))
	require.True(t, hasAction(r.Buttons, action.Abort()))

	r = env.press(action.Confirm())
	require.Equal(t, StateMenu, env.state())
	require.Contains(t, r.Text, "🗑️ <b>Deleted</b> row 3")
	require.Equal(t, []models.Row{sampleRow("A"), sampleRow("C")}, env.rows())

	// C moved up to row 3 and is offered under its new index.
	r = env.press(action.Delete())
	require.True(t, hasAction(r.Buttons, action.SelectRow(3)))
	require.False(t, hasAction(r.Buttons, action.SelectRow(4)))
	r = env.press(action.SelectRow(3))
	require.Contains(t, r.Text, "📍 C")
}

func TestDelete_Abort(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)
	env.press(action.Delete())
	env.press(action.SelectRow(2))

	r := env.press(action.Abort())
	require.Equal(t, StateMenu, env.state())
	require.Contains(t, r.Text, msgDeleteAborted)
	require.Equal(t, 0, env.ledger.deletes)
	require.Len(t, env.rows(), 3)
}

func TestDelete_BackToSelection(t *testing.T) {
	t.Parallel()
	env := seededEnv(t)
	env.press(action.Delete())
	env.press(action.SelectRow(2))

	env.press(action.Back())
	require.Equal(t, StateDeleteSelect, env.state())
	env.press(action.SelectRow(4))
	env.press(action.Confirm())
	require.Equal(t, []models.Row{sampleRow("A"), sampleRow("B")}, env.rows())
}

func TestDelete_Failures(t *testing.T) {
	t.Parallel()

	t.Run("nothing to delete", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		r := env.press(action.Delete())
		require.Contains(t, r.Text, msgNothingToDel)
	})

	t.Run("delete fails", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		env.press(action.Delete())
		env.press(action.SelectRow(2))
		env.ledger.deleteErr = errBoom

		r := env.press(action.Confirm())
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgLedgerDown)
		require.Len(t, env.rows(), 3)
	})

	t.Run("confirm without a pending row", func(t *testing.T) {
		t.Parallel()
		env := seededEnv(t)
		lease, err := env.machine.Sessions().Acquire(context.Background(), testKey)
		require.NoError(t, err)
		lease.Value().State = StateDeleteConfirm
		lease.Release()

		r := env.press(action.Confirm())
		require.Equal(t, StateMenu, env.state())
		require.Contains(t, r.Text, msgLostContext)
		require.Equal(t, 0, env.ledger.deletes)
	})
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field   models.Field
		input   string
		want    string
		wantErr bool
	}{
		{models.FieldDate, "2025.01.01", "2025.01.01", false},
		{models.FieldDate, " today ", "2025.01.15", false},
		{models.FieldDate, "2025-01-01", "", true},
		{models.FieldDate, "2025.13.01", "", true},
		{models.FieldPlace, "  Cafe Noir ", "Cafe Noir", false},
		{models.FieldPlace, "", "", true},
		{models.FieldAmount, "12.5", "12.50", false},
		{models.FieldAmount, "$3", "3.00", false},
		{models.FieldAmount, "0.00", "", true},
		{models.FieldAmount, "1.234", "1.23", false},
		{models.FieldAmount, "12.345", "12.35", false},
		{models.FieldAmount, "1e3", "1000.00", false},
		{models.FieldAmount, "0.004", "", true},
		{models.FieldCategory, "food", "Food", false},
		{models.FieldCategory, "Snacks", "", true},
		{models.FieldReceiptNumber, "INV-7", "INV-7", false},
		{models.FieldReceiptNumber, " ", "", true},
		{models.FieldTag, "GIFT", "Gift", false},
		{models.FieldTag, "", "", true},
		{models.FieldAttachment, "Skip", models.AttachmentNone, false},
		{models.FieldAttachment, "https://x", "", true},
		{models.Field(42), "x", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%q", tt.field, tt.input), func(t *testing.T) {
			t.Parallel()
			got, err := ParseValue(tt.field, tt.input, testNow)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseValue_AmountsKeepTwoDigits(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		whole := rapid.IntRange(0, 1_000_000).Draw(t, "whole")
		cents := rapid.IntRange(1, 99).Draw(t, "cents")
		input := fmt.Sprintf("%d.%02d", whole, cents)

		got, err := ParseValue(models.FieldAmount, input, testNow)
		require.NoError(t, err)
		require.Equal(t, input, got)
	})
}

func TestParseValue_AmountsRoundHalfUp(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		whole := rapid.IntRange(1, 1_000_000).Draw(t, "whole")
		fraction := rapid.IntRange(0, 999).Draw(t, "fraction")
		input := fmt.Sprintf("%d.%03d", whole, fraction)

		got, err := ParseValue(models.FieldAmount, input, testNow)
		require.NoError(t, err)
		require.Equal(t, decimal.RequireFromString(input).Round(2).StringFixed(2), got)
	})
}

func FuzzParseValue(f *testing.F) {
	f.Add(int(models.FieldAmount), "12.50")
	f.Add(int(models.FieldDate), "2025.01.01")
	f.Add(int(models.FieldCategory), "food")
	f.Add(int(models.FieldAttachment), "skip")
	f.Add(int(models.FieldPlace), "  ")

	f.Fuzz(func(t *testing.T, field int, input string) {
		got, err := ParseValue(models.Field(field), input, testNow)
		if err != nil {
			return
		}
		column := models.Field(field)
		require.True(t, column.Valid())
		require.NotEmpty(t, got)
		require.Equal(t, strings.TrimSpace(got), got)

		var draft models.Expense
		require.NoError(t, draft.Set(column, got), "accepted values must be storable")
	})
}
