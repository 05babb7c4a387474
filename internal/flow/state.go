package flow

import (
	"fmt"
	"slices"
)

// State is the step a conversation is on.
type State int

// Conversation states.
const (
	StateMenu State = iota
	StateCalendarMonth
	StateCalendarDay
	StateDate
	StatePlace
	StateAmount
	StateCategory
	StateReceiptNumber
	StateTag
	StateReceiptUpload
	StateViewDateRange
	StateSearchDateRange
	StateEditSelect
	StateEditField
	StateEditValue
	StateDeleteSelect
	StateDeleteConfirm

	stateCount
)

var stateNames = [stateCount]string{
	"MENU",
	"CALENDAR_MONTH",
	"CALENDAR_DAY",
	"DATE",
	"PLACE",
	"AMOUNT",
	"CATEGORY",
	"RECEIPT_NUMBER",
	"TAG",
	"RECEIPT_UPLOAD",
	"VIEW_DATE_RANGE",
	"SEARCH_DATE_RANGE",
	"EDIT_SELECT",
	"EDIT_FIELD",
	"EDIT_VALUE",
	"DELETE_SELECT",
	"DELETE_CONFIRM",
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s >= StateMenu && s < stateCount
}

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// edges lists the states reachable from each state. Staying put and
// returning to MENU are always allowed.
var edges = map[State][]State{
	StateMenu:            {StateCalendarMonth, StateViewDateRange, StateEditSelect, StateDeleteSelect},
	StateCalendarMonth:   {StateCalendarDay, StateDate, StatePlace, StateEditField},
	StateCalendarDay:     {StateCalendarMonth, StatePlace},
	StateDate:            {StatePlace, StateCalendarMonth, StateEditField},
	StatePlace:           {StateAmount, StateCalendarMonth},
	StateAmount:          {StateCategory, StatePlace},
	StateCategory:        {StateReceiptNumber, StateAmount},
	StateReceiptNumber:   {StateTag, StateCategory},
	StateTag:             {StateReceiptUpload, StateReceiptNumber},
	StateReceiptUpload:   {StateTag},
	StateViewDateRange:   {StateSearchDateRange},
	StateSearchDateRange: {StateViewDateRange},
	StateEditSelect:      {StateEditField},
	StateEditField:       {StateEditValue, StateCalendarMonth, StateEditSelect},
	StateEditValue:       {StateEditField},
	StateDeleteSelect:    {StateDeleteConfirm},
	StateDeleteConfirm:   {StateDeleteSelect},
}

// backTargets is where the back button leads. States without an entry go
// to MENU.
var backTargets = map[State]State{
	StateCalendarDay:     StateCalendarMonth,
	StateDate:            StateCalendarMonth,
	StatePlace:           StateCalendarMonth,
	StateAmount:          StatePlace,
	StateCategory:        StateAmount,
	StateReceiptNumber:   StateCategory,
	StateTag:             StateReceiptNumber,
	StateReceiptUpload:   StateTag,
	StateSearchDateRange: StateViewDateRange,
	StateEditField:       StateEditSelect,
	StateEditValue:       StateEditField,
	StateDeleteConfirm:   StateDeleteSelect,
}

// entrySteps is the order of the free-form fields in the new expense flow.
var entrySteps = []struct {
	state State
	next  State
}{
	{StatePlace, StateAmount},
	{StateAmount, StateCategory},
	{StateCategory, StateReceiptNumber},
	{StateReceiptNumber, StateTag},
	{StateTag, StateReceiptUpload},
}

func canTransition(from, to State) bool {
	if !to.Valid() {
		return false
	}
	if from == to || to == StateMenu {
		return true
	}
	return slices.Contains(edges[from], to)
}

// validateGraph checks that every state is described and that back and
// entry targets are legal edges.
func validateGraph() error {
	for s := StateMenu; s < stateCount; s++ {
		if _, ok := edges[s]; !ok {
			return fmt.Errorf("state %s has no edge list", s)
		}
	}
	for from, to := range backTargets {
		if !canTransition(from, to) {
			return fmt.Errorf("back from %s to %s is not an edge", from, to)
		}
	}
	for _, step := range entrySteps {
		if !canTransition(step.state, step.next) {
			return fmt.Errorf("entry step %s -> %s is not an edge", step.state, step.next)
		}
	}
	return nil
}
