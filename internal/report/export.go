package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/go-analyze/charts"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// ErrNothingToChart is returned when no category has a positive total.
var ErrNothingToChart = errors.New("no expenses to chart")

// CategoryChart renders the category breakdown of a summary as a PNG pie chart.
func CategoryChart(s Summary, title string) ([]byte, error) {
	var values []float64
	var names []string
	for _, b := range s.ByCategory {
		if !b.Total.IsPositive() {
			continue
		}
		names = append(names, b.Key)
		values = append(values, b.Total.InexactFloat64())
	}
	if len(values) == 0 {
		return nil, ErrNothingToChart
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{Text: title}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

// ExportCSV writes the header row followed by every record, cells unchanged.
func ExportCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(models.HeaderRow[:]); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(r.Row[:]); err != nil {
			return nil, fmt.Errorf("failed to write CSV row %d: %w", r.Index, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
