// Package calendar builds the day grid and month picker used for date entry.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// DaysPerWeek is the width of every grid row.
const DaysPerWeek = 7

// ErrInvalidMonth is returned for a month outside 1..12.
var ErrInvalidMonth = errors.New("invalid month")

// WeekdayLabels heads the grid columns, Monday first.
var WeekdayLabels = [DaysPerWeek]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Cell is one grid position. Blank cells have Day == 0 and no Date.
type Cell struct {
	Day  int
	Date string
}

// Blank reports whether the cell is padding.
func (c Cell) Blank() bool {
	return c.Day == 0
}

// Grid is the day picker for a single month.
type Grid struct {
	Year  int
	Month time.Month
	Weeks [][]Cell
	Prev  time.Time
	Next  time.Time
}

// Title returns a label such as "March 2026".
func (g Grid) Title() string {
	return fmt.Sprintf("%s %d", g.Month, g.Year)
}

// Days returns the number of non-blank cells.
func (g Grid) Days() int {
	n := 0
	for _, week := range g.Weeks {
		for _, c := range week {
			if !c.Blank() {
				n++
			}
		}
	}
	return n
}

// DaysIn returns the number of days in the month, leap years included.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the Monday-based weekday index (0..6) of day 1.
func FirstWeekday(year int, month time.Month) int {
	wd := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(wd) + 6) % DaysPerWeek
}

// Build lays out the month: the first row is padded with blank cells up to
// day 1's weekday, a new row starts after every seventh cell and the last
// row is kept even when it is short.
func Build(year int, month time.Month) (Grid, error) {
	if month < time.January || month > time.December {
		return Grid{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	grid := Grid{
		Year:  year,
		Month: month,
		Prev:  first.AddDate(0, -1, 0),
		Next:  first.AddDate(0, 1, 0),
	}

	row := make([]Cell, 0, DaysPerWeek)
	for range FirstWeekday(year, month) {
		row = append(row, Cell{})
	}

	for day := 1; day <= DaysIn(year, month); day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		row = append(row, Cell{Day: day, Date: models.FormatDate(date)})
		if len(row) == DaysPerWeek {
			grid.Weeks = append(grid.Weeks, row)
			row = make([]Cell, 0, DaysPerWeek)
		}
	}
	if len(row) > 0 {
		grid.Weeks = append(grid.Weeks, row)
	}

	return grid, nil
}

// MonthChoices returns the first day of now's month followed by the count-1
// preceding months, newest first. Months are stepped by calendar month so
// month lengths never skew the result.
func MonthChoices(now time.Time, count int) []time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	choices := make([]time.Time, 0, count)
	for i := range count {
		choices = append(choices, first.AddDate(0, -i, 0))
	}
	return choices
}

// ParseMonth parses a YYYY.MM month tag.
func ParseMonth(text string) (int, time.Month, error) {
	t, err := time.Parse(models.MonthLayout, text)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidMonth, text)
	}
	return t.Year(), t.Month(), nil
}

// FormatMonth renders a YYYY.MM month tag.
func FormatMonth(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format(models.MonthLayout)
}
