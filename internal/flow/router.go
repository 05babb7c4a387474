package flow

import (
	"errors"
	"fmt"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
)

// outcome is the result of a handler: the next state, a notice shown above
// the next prompt, and optional extras.
type outcome struct {
	next    State
	notice  string
	buttons [][]Button
	files   []File
	failed  bool
}

func stay(notice string) outcome {
	return outcome{next: stayHere, notice: notice}
}

func advance(next State, notice string) outcome {
	return outcome{next: next, notice: notice}
}

func toMenu(notice string) outcome {
	return outcome{next: StateMenu, notice: notice}
}

// failMenu ends the flow in MENU after an external failure.
func failMenu(notice string) outcome {
	return outcome{next: StateMenu, notice: notice, failed: true}
}

// stayHere is resolved to the current state once the handler returns.
const stayHere State = -1

// router maps (state, action kind) to a handler.
type router struct {
	table map[State]map[action.Kind]handler
	errs  []error
}

func newRouter() *router {
	return &router{table: make(map[State]map[action.Kind]handler)}
}

// on registers h. Registering the same pair twice is an error reported by err.
func (r *router) on(state State, kind action.Kind, h handler) {
	if !state.Valid() {
		r.errs = append(r.errs, fmt.Errorf("route for unknown state %d", state))
		return
	}
	if kind == action.KindUnknown || kind == action.KindMenu || kind == action.KindBack {
		r.errs = append(r.errs, fmt.Errorf("action %s cannot be routed per state", kind))
		return
	}
	byKind, ok := r.table[state]
	if !ok {
		byKind = make(map[action.Kind]handler)
		r.table[state] = byKind
	}
	if _, dup := byKind[kind]; dup {
		r.errs = append(r.errs, fmt.Errorf("duplicate route %s/%s", state, kind))
		return
	}
	byKind[kind] = h
}

func (r *router) err() error {
	return errors.Join(r.errs...)
}

func (r *router) lookup(state State, kind action.Kind) (handler, bool) {
	h, ok := r.table[state][kind]
	return h, ok
}
