// Package action defines the typed payload carried by inline buttons.
//
// Every button carries an Action. It is encoded into Telegram callback data
// as a namespace optionally followed by ":" and a payload, and decoded once
// when the update arrives.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// Kind is the action discriminant.
type Kind int

// Action kinds grouped by namespace.
const (
	KindUnknown Kind = iota

	// navigation
	KindMenu
	KindBack

	// new expense
	KindNewExpense

	// view list
	KindList

	// view by date
	KindViewByDate
	KindRangePreset

	// edit
	KindEdit
	KindEditField

	// delete
	KindDelete
	KindConfirm
	KindAbort

	// shared by edit and delete selection
	KindSelectRow

	// summary
	KindSummary
	KindChart
	KindExportCSV

	// field scoped
	KindMonth
	KindDay
	KindToday
	KindManualDate
	KindBlank
	KindCategory
	KindTag
	KindSkip
)

// Preset names a quick date range on the view-by-date screen.
type Preset string

// Date range presets.
const (
	PresetToday  Preset = "today"
	PresetWeek   Preset = "week"
	PresetMonth  Preset = "month"
	PresetCustom Preset = "custom"
)

// ErrUnknownAction is returned when callback data matches no namespace.
var ErrUnknownAction = errors.New("unknown action")

// ErrBadPayload is returned when a namespace matched but its payload did not parse.
var ErrBadPayload = errors.New("bad action payload")

// Action is the decoded button payload. Only the fields relevant to Kind are set.
type Action struct {
	Kind   Kind
	Year   int
	Month  time.Month
	Date   string
	Row    int
	Field  models.Field
	Value  string
	Preset Preset
	Raw    string
}

type namespace struct {
	name       string
	hasPayload bool
}

var namespaces = map[Kind]namespace{
	KindMenu:        {name: "menu"},
	KindBack:        {name: "back"},
	KindNewExpense:  {name: "new"},
	KindList:        {name: "list"},
	KindViewByDate:  {name: "range"},
	KindRangePreset: {name: "preset", hasPayload: true},
	KindEdit:        {name: "edit"},
	KindEditField:   {name: "field", hasPayload: true},
	KindDelete:      {name: "delete"},
	KindConfirm:     {name: "yes"},
	KindAbort:       {name: "no"},
	KindSelectRow:   {name: "row", hasPayload: true},
	KindSummary:     {name: "summary"},
	KindChart:       {name: "chart"},
	KindExportCSV:   {name: "csv"},
	KindMonth:       {name: "month", hasPayload: true},
	KindDay:         {name: "day", hasPayload: true},
	KindToday:       {name: "today"},
	KindManualDate:  {name: "manual"},
	KindBlank:       {name: "blank"},
	KindCategory:    {name: "cat", hasPayload: true},
	KindTag:         {name: "tag", hasPayload: true},
	KindSkip:        {name: "skip"},
}

var byName map[string]Kind

func init() {
	if err := checkNamespaces(); err != nil {
		panic(err)
	}
	byName = make(map[string]Kind, len(namespaces))
	for kind, ns := range namespaces {
		byName[ns.name] = kind
	}
}

// checkNamespaces rejects a table where one namespace is a prefix of
// another, which would make prefix routing ambiguous.
func checkNamespaces() error {
	for ka, a := range namespaces {
		for kb, b := range namespaces {
			if ka != kb && strings.HasPrefix(b.name, a.name) {
				return fmt.Errorf("action namespace %q is a prefix of %q", a.name, b.name)
			}
		}
	}
	return nil
}

// Menu and the other constructors build actions for keyboards.
func Menu() Action       { return Action{Kind: KindMenu} }
func Back() Action       { return Action{Kind: KindBack} }
func NewExpense() Action { return Action{Kind: KindNewExpense} }
func List() Action       { return Action{Kind: KindList} }
func ViewByDate() Action { return Action{Kind: KindViewByDate} }
func Edit() Action       { return Action{Kind: KindEdit} }
func Delete() Action     { return Action{Kind: KindDelete} }
func Confirm() Action    { return Action{Kind: KindConfirm} }
func Abort() Action      { return Action{Kind: KindAbort} }
func Summary() Action    { return Action{Kind: KindSummary} }
func Chart() Action      { return Action{Kind: KindChart} }
func ExportCSV() Action  { return Action{Kind: KindExportCSV} }
func Today() Action      { return Action{Kind: KindToday} }
func ManualDate() Action { return Action{Kind: KindManualDate} }
func Blank() Action      { return Action{Kind: KindBlank} }
func Skip() Action       { return Action{Kind: KindSkip} }

// RangePreset selects a quick date range.
func RangePreset(p Preset) Action { return Action{Kind: KindRangePreset, Preset: p} }

// EditField picks the column to edit.
func EditField(f models.Field) Action { return Action{Kind: KindEditField, Field: f} }

// SelectRow picks a ledger row for edit or delete.
func SelectRow(row int) Action { return Action{Kind: KindSelectRow, Row: row} }

// Month opens the day grid for a month.
func Month(year int, month time.Month) Action {
	return Action{Kind: KindMonth, Year: year, Month: month}
}

// Day picks a calendar date in canonical form.
func Day(date string) Action { return Action{Kind: KindDay, Date: date} }

// Category picks a category by name.
func Category(name string) Action { return Action{Kind: KindCategory, Value: name} }

// Tag picks a tag by name.
func Tag(name string) Action { return Action{Kind: KindTag, Value: name} }

// String returns the namespace name of the kind.
func (k Kind) String() string {
	if ns, ok := namespaces[k]; ok {
		return ns.name
	}
	return "unknown"
}

// Encode renders the action as callback data.
func (a Action) Encode() string {
	ns, ok := namespaces[a.Kind]
	if !ok {
		return a.Raw
	}
	if !ns.hasPayload {
		return ns.name
	}
	return ns.name + ":" + a.payload()
}

func (a Action) payload() string {
	switch a.Kind {
	case KindRangePreset:
		return string(a.Preset)
	case KindEditField:
		return strconv.Itoa(int(a.Field))
	case KindSelectRow:
		return strconv.Itoa(a.Row)
	case KindMonth:
		return time.Date(a.Year, a.Month, 1, 0, 0, 0, 0, time.UTC).Format(models.MonthLayout)
	case KindDay:
		return a.Date
	case KindCategory, KindTag:
		return a.Value
	}
	return ""
}

// Decode parses callback data. The returned action always carries Raw,
// also when an error is returned.
func Decode(data string) (Action, error) {
	name, payload, hasPayload := strings.Cut(data, ":")
	kind, ok := byName[name]
	if !ok {
		return Action{Kind: KindUnknown, Raw: data}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
	}
	if namespaces[kind].hasPayload != hasPayload {
		return Action{Kind: KindUnknown, Raw: data}, fmt.Errorf("%w: %q", ErrBadPayload, data)
	}

	a := Action{Kind: kind, Raw: data}
	var err error
	switch kind {
	case KindRangePreset:
		a.Preset = Preset(payload)
		switch a.Preset {
		case PresetToday, PresetWeek, PresetMonth, PresetCustom:
		default:
			err = ErrBadPayload
		}
	case KindEditField:
		var n int
		n, err = strconv.Atoi(payload)
		a.Field = models.Field(n)
		if err == nil && !a.Field.Valid() {
			err = ErrBadPayload
		}
	case KindSelectRow:
		a.Row, err = strconv.Atoi(payload)
		if err == nil && a.Row < 2 {
			err = ErrBadPayload
		}
	case KindMonth:
		var t time.Time
		t, err = time.Parse(models.MonthLayout, payload)
		a.Year, a.Month = t.Year(), t.Month()
	case KindDay:
		_, err = time.Parse(models.DateLayout, payload)
		a.Date = payload
	case KindCategory, KindTag:
		a.Value = payload
		if payload == "" {
			err = ErrBadPayload
		}
	}
	if err != nil {
		return Action{Kind: KindUnknown, Raw: data}, fmt.Errorf("%w: %q", ErrBadPayload, data)
	}
	return a, nil
}
