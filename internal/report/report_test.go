package report

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"pgregory.net/rapid"
)

func row(date, place, amount, category, tag string) models.Row {
	return models.Row{date, place, amount, category, "R1", tag, models.AttachmentNone}
}

func sampleRows() []models.Row {
	return []models.Row{
		models.HeaderRow,
		row("2025.01.01", "Cafe", "12.5", "Food", "Personal"),
		row("2025.01.15", "Taxi", "30", "Transportation", "Business"),
		row("2025.02.03", "Shop", "100", "Electronics", "Personal"),
		row("not a date", "Bakery", "4", "Food", "Gift"),
		row("2025.02.10", "Market", "n/a", "Food", "House"),
	}
}

func TestRecords(t *testing.T) {
	t.Parallel()

	t.Run("skips header and numbers from two", func(t *testing.T) {
		records := Records(sampleRows())
		require.Len(t, records, 5)
		require.Equal(t, 2, records[0].Index)
		require.Equal(t, "Cafe", records[0].Row[models.FieldPlace])
		require.Equal(t, 6, records[4].Index)
	})

	t.Run("header only", func(t *testing.T) {
		require.Empty(t, Records([]models.Row{models.HeaderRow}))
		require.Empty(t, Records(nil))
	})
}

func TestLatest(t *testing.T) {
	t.Parallel()

	records := Records(sampleRows())

	got := Latest(records, 2)
	require.Len(t, got, 2)
	require.Equal(t, 6, got[0].Index)
	require.Equal(t, 5, got[1].Index)

	require.Len(t, Latest(records, 50), len(records))
	require.Empty(t, Latest(records, 0))
	require.Empty(t, Latest(nil, 5))
}

func TestFilterByDateRange(t *testing.T) {
	t.Parallel()

	records := Records(sampleRows())

	t.Run("inclusive bounds", func(t *testing.T) {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
		got := FilterByDateRange(records, start, end)
		require.Len(t, got, 2)
		require.Equal(t, "Cafe", got[0].Row[models.FieldPlace])
		require.Equal(t, "Taxi", got[1].Row[models.FieldPlace])
	})

	t.Run("time of day is ignored", func(t *testing.T) {
		start := time.Date(2025, 2, 3, 23, 59, 0, 0, time.UTC)
		end := time.Date(2025, 2, 3, 0, 1, 0, 0, time.UTC)
		got := FilterByDateRange(records, start, end)
		require.Len(t, got, 1)
		require.Equal(t, "Shop", got[0].Row[models.FieldPlace])
	})

	t.Run("malformed dates never match", func(t *testing.T) {
		got := FilterByDateRange(records, time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
		for _, r := range got {
			require.NotEqual(t, "Bakery", r.Row[models.FieldPlace])
		}
		require.Len(t, got, 4)
	})

	t.Run("empty range", func(t *testing.T) {
		got := FilterByDateRange(records, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC))
		require.Empty(t, got)
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(Records(sampleRows()))

	require.Equal(t, 5, s.Count)
	require.Equal(t, 1, s.Skipped)
	require.True(t, decimal.RequireFromString("146.5").Equal(s.Total), s.Total.String())

	require.Equal(t, "Electronics", s.ByCategory[0].Key)
	require.Equal(t, "Transportation", s.ByCategory[1].Key)
	require.Equal(t, "Food", s.ByCategory[2].Key)
	require.True(t, decimal.RequireFromString("16.5").Equal(s.ByCategory[2].Total))

	require.Equal(t, "Personal", s.ByTag[0].Key)
	require.True(t, decimal.RequireFromString("112.5").Equal(s.ByTag[0].Total))

	require.Len(t, s.ByMonth, 2)
	require.Equal(t, "2025.02", s.ByMonth[0].Key)
	require.Equal(t, "2025.01", s.ByMonth[1].Key)
	require.True(t, decimal.RequireFromString("42.5").Equal(s.ByMonth[1].Total))
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	require.Zero(t, s.Count)
	require.True(t, s.Total.IsZero())
	require.Empty(t, s.ByCategory)
}

func TestSummarize_TotalsAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		rows := []models.Row{models.HeaderRow}
		want := decimal.Zero
		for i := range n {
			cents := rapid.IntRange(1, 1_000_000).Draw(t, "cents")
			amount := decimal.New(int64(cents), -2)
			want = want.Add(amount)
			category := rapid.SampledFrom(models.Categories).Draw(t, "category")
			tag := rapid.SampledFrom(models.Tags).Draw(t, "tag")
			date := time.Date(2025, time.Month(1+i%12), 1+i%28, 0, 0, 0, 0, time.UTC)
			rows = append(rows, row(models.FormatDate(date), "p", amount.String(), category, tag))
		}

		s := Summarize(Records(rows))
		if !s.Total.Equal(want) {
			t.Fatalf("total = %s, want %s", s.Total, want)
		}
		for name, buckets := range map[string][]Bucket{"category": s.ByCategory, "tag": s.ByTag, "month": s.ByMonth} {
			sum := decimal.Zero
			for _, b := range buckets {
				sum = sum.Add(b.Total)
			}
			if !sum.Equal(want) {
				t.Fatalf("%s buckets sum to %s, want %s", name, sum, want)
			}
		}
	})
}

func TestRanges(t *testing.T) {
	t.Parallel()

	// Wednesday.
	now := time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)

	start, end := WeekRange(now)
	require.Equal(t, "2024.12.30", models.FormatDate(start))
	require.Equal(t, "2025.01.05", models.FormatDate(end))

	sunday := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	start, _ = WeekRange(sunday)
	require.Equal(t, "2024.12.30", models.FormatDate(start))

	start, end = MonthRange(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "2024.02.01", models.FormatDate(start))
	require.Equal(t, "2024.02.29", models.FormatDate(end))
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	records := Records(sampleRows())
	data, err := ExportCSV(records)
	require.NoError(t, err)

	parsed, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, len(records)+1)
	require.Equal(t, models.HeaderRow[:], parsed[0])
	require.Equal(t, []string{"2025.01.01", "Cafe", "12.5", "Food", "R1", "Personal", "No receipt"}, parsed[1])
}

func TestCategoryChart(t *testing.T) {
	t.Parallel()

	t.Run("renders png", func(t *testing.T) {
		png, err := CategoryChart(Summarize(Records(sampleRows())), "All expenses")
		require.NoError(t, err)
		require.NotEmpty(t, png)
		require.Equal(t, "\x89PNG", string(png[:4]))
	})

	t.Run("nothing to chart", func(t *testing.T) {
		_, err := CategoryChart(Summary{}, "Empty")
		require.ErrorIs(t, err, ErrNothingToChart)
	})
}
