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
	"gitlab.com/yelinaung/ledger-bot/internal/report"
)

// searchLimit caps the rows printed for a date range.
const searchLimit = 20

// loadRecords reads the whole ledger.
func (m *Machine) loadRecords(ctx context.Context) ([]report.Record, error) {
	callCtx, cancel := m.external(ctx)
	defer cancel()

	rows, err := m.ledger.GetAllRows(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return report.Records(rows), nil
}

func (m *Machine) listLatest(ctx context.Context, _ *Session, _ Event) outcome {
	records, err := m.loadRecords(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list expenses")
		return failMenu(msgLedgerDown)
	}
	if len(records) == 0 {
		return toMenu(msgNoExpenses)
	}
	latest := report.Latest(records, report.ListLimit)
	return toMenu(renderListing(fmt.Sprintf("🧾 <b>Latest %d expenses</b>", len(latest)), latest, len(latest)))
}

func (m *Machine) openRangePicker(context.Context, *Session, Event) outcome {
	return advance(StateViewDateRange, "")
}

func (m *Machine) pickPreset(ctx context.Context, s *Session, ev Event) outcome {
	now := m.now()
	switch ev.Action.Preset {
	case action.PresetToday:
		return m.searchRange(ctx, now, now)
	case action.PresetWeek:
		start, end := report.WeekRange(now)
		return m.searchRange(ctx, start, end)
	case action.PresetMonth:
		start, end := report.MonthRange(now)
		return m.searchRange(ctx, start, end)
	case action.PresetCustom:
		s.Search = &SearchContext{Phase: SearchStart}
		return advance(StateSearchDateRange, "")
	}
	return stay(msgUseButtons)
}

// searchText collects the start and then the end date of a custom range.
func (m *Machine) searchText(ctx context.Context, s *Session, ev Event) outcome {
	if s.Search == nil {
		return failMenu(msgLostContext)
	}
	date, err := models.ParseDate(ev.Text, m.now())
	if err != nil {
		return stay(msgBadDate)
	}

	if s.Search.Phase == SearchStart {
		s.Search.Start = date
		s.Search.Phase = SearchEnd
		return stay("")
	}
	if date.Before(s.Search.Start) {
		return stay(msgEndBeforeStart)
	}
	return m.searchRange(ctx, s.Search.Start, date)
}

// searchRange renders the records dated within [start, end] and returns to MENU.
func (m *Machine) searchRange(ctx context.Context, start, end time.Time) outcome {
	records, err := m.loadRecords(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to search expenses")
		return failMenu(msgLedgerDown)
	}

	from, to := models.FormatDate(start), models.FormatDate(end)
	title := fmt.Sprintf("🔎 <b>Expenses %s – %s</b>", from, to)
	if from == to {
		title = fmt.Sprintf("🔎 <b>Expenses on %s</b>", from)
	}

	matches := report.FilterByDateRange(records, start, end)
	if len(matches) == 0 {
		return toMenu(title + "\n\nNo expenses in this range.")
	}

	summary := report.Summarize(matches)
	shown := report.Latest(matches, searchLimit)
	text := renderListing(title, shown, len(matches))
	text += fmt.Sprintf("\n\nTotal: <b>%s</b>", summary.Total.StringFixed(2))
	return toMenu(text)
}

func (m *Machine) showSummary(ctx context.Context, _ *Session, _ Event) outcome {
	records, err := m.loadRecords(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to summarize expenses")
		return failMenu(msgLedgerDown)
	}
	if len(records) == 0 {
		return toMenu(msgNoExpenses)
	}

	out := toMenu(renderSummary(report.Summarize(records)))
	out.buttons = [][]Button{{
		{Label: "📊 Chart", Action: action.Chart()},
		{Label: "📄 CSV", Action: action.ExportCSV()},
	}}
	return out
}

func (m *Machine) sendChart(ctx context.Context, _ *Session, _ Event) outcome {
	records, err := m.loadRecords(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load expenses for chart")
		return failMenu(msgLedgerDown)
	}

	summary := report.Summarize(records)
	png, err := report.CategoryChart(summary, "Expenses by category")
	if errors.Is(err, report.ErrNothingToChart) {
		return toMenu(msgNothingToChart)
	}
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to render chart")
		return failMenu(msgInternal)
	}

	out := toMenu("")
	out.files = []File{{
		Name:    fmt.Sprintf("chart_%s.png", m.now().Format("2006-01-02")),
		Data:    png,
		Caption: fmt.Sprintf("📊 <b>Expenses by category</b>\nTotal: %s, count: %d", summary.Total.StringFixed(2), summary.Count),
		Photo:   true,
	}}
	return out
}

func (m *Machine) sendCSV(ctx context.Context, _ *Session, _ Event) outcome {
	records, err := m.loadRecords(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to load expenses for export")
		return failMenu(msgLedgerDown)
	}

	data, err := report.ExportCSV(records)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to export CSV")
		return failMenu(msgInternal)
	}

	out := toMenu("")
	out.files = []File{{
		Name:    fmt.Sprintf("ledger_%s.csv", m.now().Format("2006-01-02")),
		Data:    data,
		Caption: fmt.Sprintf("📄 %d expense(s)", len(records)),
	}}
	return out
}

// renderListing prints records one per block. total is the number of
// matches, which may exceed the records shown.
func renderListing(title string, records []report.Record, total int) string {
	var sb strings.Builder
	sb.WriteString(title)
	for _, r := range records {
		sb.WriteString("\n\n")
		sb.WriteString(formatLine(r))
	}
	if total > len(records) {
		sb.WriteString(fmt.Sprintf("\n\n<i>…and %d more</i>", total-len(records)))
	}
	return sb.String()
}

func renderSummary(s report.Summary) string {
	var sb strings.Builder
	sb.WriteString("📈 <b>Summary</b>\n\n")
	sb.WriteString(fmt.Sprintf("Expenses: %d\nTotal: <b>%s</b>", s.Count, s.Total.StringFixed(2)))
	if s.Skipped > 0 {
		sb.WriteString(fmt.Sprintf("\n<i>%d row(s) with an unreadable amount were left out.</i>", s.Skipped))
	}

	writeBuckets := func(title string, buckets []report.Bucket) {
		if len(buckets) == 0 {
			return
		}
		sb.WriteString("\n\n<b>" + title + "</b>")
		for _, b := range buckets {
			key := b.Key
			if key == "" {
				key = "—"
			}
			sb.WriteString(fmt.Sprintf("\n%s: %s", escapeHTML(key), b.Total.StringFixed(2)))
		}
	}
	writeBuckets("By category", s.ByCategory)
	writeBuckets("By tag", s.ByTag)
	writeBuckets("By month", s.ByMonth)
	return sb.String()
}
