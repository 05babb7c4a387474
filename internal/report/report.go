// Package report filters and aggregates ledger records for listings and summaries.
package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// Listing sizes.
const (
	ListLimit      = 5
	SelectionLimit = 10
)

// Record is a ledger row together with its 1-based row reference.
type Record struct {
	Index int
	Row   models.Row
}

// Bucket is one aggregate line.
type Bucket struct {
	Key   string
	Total decimal.Decimal
}

// Summary is the rollup of a set of records.
type Summary struct {
	Count      int
	Total      decimal.Decimal
	ByCategory []Bucket
	ByTag      []Bucket
	ByMonth    []Bucket
	// Skipped counts records whose amount did not parse.
	Skipped int
}

// Records converts a full ledger read, header included, into records.
// Row 1 is the header, so the first data row has index 2.
func Records(rows []models.Row) []Record {
	if len(rows) <= 1 {
		return nil
	}
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		records = append(records, Record{Index: i + 2, Row: row})
	}
	return records
}

// Latest returns up to n records, most recently appended first. Order is by
// ledger position, not by the date column.
func Latest(records []Record, n int) []Record {
	if n <= 0 {
		return nil
	}
	out := make([]Record, 0, min(n, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}

// FilterByDateRange keeps records with start <= date <= end, compared as
// calendar dates. Rows with a malformed date are skipped.
func FilterByDateRange(records []Record, start, end time.Time) []Record {
	from := dayOf(start)
	to := dayOf(end)
	var out []Record
	for _, r := range records {
		date, err := r.Row.Date()
		if err != nil {
			continue
		}
		if date.Before(from) || date.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Summarize aggregates records. A record with an unparseable amount is left
// out of every total; one with an unparseable date only misses the monthly
// rollup.
func Summarize(records []Record) Summary {
	s := Summary{Count: len(records), Total: decimal.Zero}
	byCategory := map[string]decimal.Decimal{}
	byTag := map[string]decimal.Decimal{}
	byMonth := map[string]decimal.Decimal{}

	for _, r := range records {
		amount, err := r.Row.Amount()
		if err != nil {
			s.Skipped++
			continue
		}
		s.Total = s.Total.Add(amount)
		byCategory[r.Row[models.FieldCategory]] = byCategory[r.Row[models.FieldCategory]].Add(amount)
		byTag[r.Row[models.FieldTag]] = byTag[r.Row[models.FieldTag]].Add(amount)

		if date, err := r.Row.Date(); err == nil {
			key := date.Format(models.MonthLayout)
			byMonth[key] = byMonth[key].Add(amount)
		}
	}

	s.ByCategory = sortByTotal(byCategory)
	s.ByTag = sortByTotal(byTag)
	s.ByMonth = sortByKeyDesc(byMonth)
	return s
}

func sortByTotal(m map[string]decimal.Decimal) []Bucket {
	buckets := toBuckets(m)
	slices.SortFunc(buckets, func(a, b Bucket) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return buckets
}

func sortByKeyDesc(m map[string]decimal.Decimal) []Bucket {
	buckets := toBuckets(m)
	slices.SortFunc(buckets, func(a, b Bucket) int {
		return cmp.Compare(b.Key, a.Key)
	})
	return buckets
}

func toBuckets(m map[string]decimal.Decimal) []Bucket {
	buckets := make([]Bucket, 0, len(m))
	for k, v := range m {
		buckets = append(buckets, Bucket{Key: k, Total: v})
	}
	return buckets
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekRange returns Monday..Sunday of the week containing now.
func WeekRange(now time.Time) (time.Time, time.Time) {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := time.Date(now.Year(), now.Month(), now.Day()-weekday+1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 6)
}

// MonthRange returns the first and last day of now's month.
func MonthRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}
