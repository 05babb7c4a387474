// Package flow implements the per-conversation state machine of the ledger bot.
//
// The transport classifies every update into an Event and hands it to
// Machine.Handle together with the conversation key and a ReplySink. The
// machine takes an exclusive lease on the session, runs the handler chosen
// by (state, event), then replies with the handler's notice followed by the
// prompt of the state it moved to.
package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/session"
)

const instrumentationName = "gitlab.com/yelinaung/ledger-bot/internal/flow"

// DefaultCallTimeout bounds every ledger, attachment and download call.
const DefaultCallTimeout = 15 * time.Second

// Deps are the collaborators of a Machine. Attachments and Images may be
// nil, in which case receipts are recorded as failed uploads. Suggester is
// optional.
type Deps struct {
	Ledger      LedgerStore
	Attachments AttachmentStore
	Images      ImageFetcher
	Suggester   Suggester
	Sessions    *session.Store[Session]
	Now         func() time.Time
	Location    *time.Location
	CallTimeout time.Duration
}

type handler func(ctx context.Context, s *Session, ev Event) outcome

// stateSpec holds the free-input handlers of a state. Buttons are routed
// separately.
type stateSpec struct {
	onText  handler
	onImage handler
}

// Machine runs conversations.
type Machine struct {
	ledger      LedgerStore
	attachments AttachmentStore
	images      ImageFetcher
	suggester   Suggester
	sessions    *session.Store[Session]
	clock       func() time.Time
	location    *time.Location
	callTimeout time.Duration

	states map[State]stateSpec
	router *router

	tracer      trace.Tracer
	transitions metric.Int64Counter
	failures    metric.Int64Counter
}

// New builds a machine and validates its transition table.
func New(deps Deps) (*Machine, error) {
	if deps.Ledger == nil {
		return nil, errors.New("flow: ledger is required")
	}
	if err := validateGraph(); err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}

	m := &Machine{
		ledger:      deps.Ledger,
		attachments: deps.Attachments,
		images:      deps.Images,
		suggester:   deps.Suggester,
		sessions:    deps.Sessions,
		clock:       deps.Now,
		location:    deps.Location,
		callTimeout: deps.CallTimeout,
		tracer:      otel.Tracer(instrumentationName),
	}
	if m.sessions == nil {
		m.sessions = session.NewStore(session.DefaultTTL, NewSession)
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.location == nil {
		m.location = time.UTC
	}
	if m.callTimeout <= 0 {
		m.callTimeout = DefaultCallTimeout
	}

	meter := otel.Meter(instrumentationName)
	var err error
	m.transitions, err = meter.Int64Counter("ledger_bot.flow.transitions",
		metric.WithDescription("State transitions by source and target state"))
	if err != nil {
		return nil, fmt.Errorf("flow: create transitions counter: %w", err)
	}
	m.failures, err = meter.Int64Counter("ledger_bot.flow.failures",
		metric.WithDescription("Flows aborted to the menu by an error"))
	if err != nil {
		return nil, fmt.Errorf("flow: create failures counter: %w", err)
	}

	m.states = m.stateSpecs()
	if m.router, err = m.routes(); err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	for s := StateMenu; s < stateCount; s++ {
		if _, ok := m.states[s]; !ok {
			return nil, fmt.Errorf("flow: state %s has no handlers", s)
		}
	}
	return m, nil
}

// Sessions exposes the session store, e.g. for the sweeper.
func (m *Machine) Sessions() *session.Store[Session] {
	return m.sessions
}

func (m *Machine) now() time.Time {
	return m.clock().In(m.location)
}

func (m *Machine) stateSpecs() map[State]stateSpec {
	return map[State]stateSpec{
		StateMenu:            {onText: m.menuText},
		StateCalendarMonth:   {onText: m.dateText},
		StateCalendarDay:     {onText: m.dateText},
		StateDate:            {onText: m.dateText},
		StatePlace:           {onText: m.entryText},
		StateAmount:          {onText: m.entryText},
		StateCategory:        {onText: m.entryText},
		StateReceiptNumber:   {onText: m.entryText},
		StateTag:             {onText: m.entryText},
		StateReceiptUpload:   {onText: m.receiptText, onImage: m.receiptImage},
		StateViewDateRange:   {},
		StateSearchDateRange: {onText: m.searchText},
		StateEditSelect:      {},
		StateEditField:       {},
		StateEditValue:       {onText: m.editText, onImage: m.editImage},
		StateDeleteSelect:    {},
		StateDeleteConfirm:   {},
	}
}

func (m *Machine) routes() (*router, error) {
	r := newRouter()
	r.on(StateMenu, action.KindNewExpense, m.startEntry)
	r.on(StateMenu, action.KindList, m.listLatest)
	r.on(StateMenu, action.KindViewByDate, m.openRangePicker)
	r.on(StateMenu, action.KindEdit, m.openEditSelect)
	r.on(StateMenu, action.KindDelete, m.openDeleteSelect)
	r.on(StateMenu, action.KindSummary, m.showSummary)
	r.on(StateMenu, action.KindChart, m.sendChart)
	r.on(StateMenu, action.KindExportCSV, m.sendCSV)

	r.on(StateCalendarMonth, action.KindMonth, m.pickMonth)
	r.on(StateCalendarMonth, action.KindToday, m.pickToday)
	r.on(StateCalendarMonth, action.KindManualDate, m.manualDate)
	r.on(StateCalendarDay, action.KindMonth, m.pickMonth)
	r.on(StateCalendarDay, action.KindDay, m.pickDay)
	r.on(StateCalendarDay, action.KindBlank, m.blankDay)

	r.on(StateCategory, action.KindCategory, m.entryChoice)
	r.on(StateTag, action.KindTag, m.entryChoice)
	r.on(StateReceiptUpload, action.KindSkip, m.skipReceipt)

	r.on(StateViewDateRange, action.KindRangePreset, m.pickPreset)

	r.on(StateEditSelect, action.KindSelectRow, m.selectForEdit)
	r.on(StateEditField, action.KindEditField, m.beginEdit)
	r.on(StateEditValue, action.KindCategory, m.editChoice)
	r.on(StateEditValue, action.KindTag, m.editChoice)
	r.on(StateEditValue, action.KindSkip, m.editChoice)

	r.on(StateDeleteSelect, action.KindSelectRow, m.selectForDelete)
	r.on(StateDeleteConfirm, action.KindConfirm, m.confirmDelete)
	r.on(StateDeleteConfirm, action.KindAbort, m.abortDelete)

	return r, r.err()
}

// Handle processes one event for the conversation identified by key.
func (m *Machine) Handle(ctx context.Context, key session.Key, ev Event, sink ReplySink) error {
	ctx, span := m.tracer.Start(ctx, "flow.Handle", trace.WithAttributes(
		attribute.String("event.kind", ev.Kind.String()),
		attribute.String("user", logger.HashUserID(key.UserID)),
	))
	defer span.End()

	lease, err := m.sessions.Acquire(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire session")
		return fmt.Errorf("failed to acquire session: %w", err)
	}
	defer lease.Release()

	s := lease.Value()
	from := s.State

	var prefix string
	if lease.Expired() && ev.Kind != EventCommand {
		prefix = msgExpired
	}

	out := m.dispatch(ctx, key, s, ev)
	if out.next == stayHere {
		out.next = from
	}
	// Commands restart the conversation from the menu.
	origin := from
	if ev.Kind == EventCommand {
		origin = StateMenu
	}
	if !canTransition(origin, out.next) {
		logger.Log.Error().
			Stringer("from", from).
			Stringer("to", out.next).
			Str("user", logger.HashUserID(key.UserID)).
			Msg("Illegal transition")
		out = failMenu(msgInternal)
	}
	m.enter(s, out.next)

	attrs := metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", s.State.String()),
		attribute.String("event.kind", ev.Kind.String()),
	)
	m.transitions.Add(ctx, 1, attrs)
	if out.failed {
		m.failures.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, "flow aborted")
	}
	span.SetAttributes(
		attribute.String("state.from", from.String()),
		attribute.String("state.to", s.State.String()),
	)

	logger.Log.Debug().
		Str("user", logger.HashUserID(key.UserID)).
		Str("chat", logger.HashChatID(key.ChatID)).
		Stringer("event", ev.Kind).
		Stringer("from", from).
		Stringer("to", s.State).
		Msg("Transition")

	reply := m.compose(prefix, out, s)
	if s.State == StateMenu {
		lease.Discard()
	}

	if err := sink.Reply(ctx, reply); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// dispatch runs the handler for the event. A panicking handler ends the
// flow in MENU.
func (m *Machine) dispatch(ctx context.Context, key session.Key, s *Session, ev Event) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Stringer("state", s.State).
				Str("user", logger.HashUserID(key.UserID)).
				Msg("Panic recovered in flow handler")
			out = failMenu(msgInternal)
		}
	}()

	switch ev.Kind {
	case EventCommand:
		return m.onCommand(ctx, s, ev)

	case EventButton:
		switch ev.Action.Kind {
		case action.KindMenu:
			return toMenu("")
		case action.KindBack:
			return m.back(s)
		}
		h, ok := m.router.lookup(s.State, ev.Action.Kind)
		if !ok {
			logger.Log.Warn().
				Str("data", ev.Action.Raw).
				Stringer("action", ev.Action.Kind).
				Stringer("state", s.State).
				Str("user", logger.HashUserID(key.UserID)).
				Msg("Unrouted action")
			unrouted := toMenu(msgUnrouted)
			unrouted.failed = s.State != StateMenu
			return unrouted
		}
		return h(ctx, s, ev)

	case EventText:
		if h := m.states[s.State].onText; h != nil {
			return h(ctx, s, ev)
		}
		return stay(msgUseButtons)

	case EventImage:
		if h := m.states[s.State].onImage; h != nil {
			return h(ctx, s, ev)
		}
		return stay(msgNoImageHere)
	}

	return toMenu(msgInternal)
}

func (m *Machine) onCommand(ctx context.Context, s *Session, ev Event) outcome {
	switch ev.Command {
	case CommandStart:
		greeting := "Let's record a new expense."
		if ev.FirstName != "" {
			greeting = fmt.Sprintf("Hi %s! Let's record a new expense.", escapeHTML(ev.FirstName))
		}
		out := m.startEntry(ctx, s, ev)
		out.notice = greeting
		return out
	case CommandCancel:
		if s.State == StateMenu {
			return toMenu(msgNothingToStop)
		}
		return toMenu(msgCancelled)
	case CommandMenu:
		return toMenu("")
	}
	return toMenu(msgPickFromMenu)
}

func (m *Machine) menuText(context.Context, *Session, Event) outcome {
	return stay(msgPickFromMenu)
}

// back moves to the previous step. Calendar steps opened from the edit flow
// lead back to the field picker.
func (m *Machine) back(s *Session) outcome {
	if s.Edit != nil && (s.State == StateCalendarMonth || s.State == StateDate) {
		return advance(StateEditField, "")
	}
	target, ok := backTargets[s.State]
	if !ok {
		return toMenu("")
	}
	switch s.State {
	case StateEditField:
		s.Edit = nil
	case StateDeleteConfirm:
		s.Delete = nil
	case StateSearchDateRange:
		s.Search = nil
	}
	return advance(target, "")
}

// enter commits the next state. Entering MENU clears all scratch.
func (m *Machine) enter(s *Session, next State) {
	if next == StateMenu {
		s.reset()
		return
	}
	s.State = next
}

// compose joins the handler notice with the prompt of the new state.
func (m *Machine) compose(prefix string, out outcome, s *Session) Reply {
	prompt := m.prompt(s)

	var parts []string
	for _, p := range []string{prefix, out.notice, prompt.Text} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	buttons := append([][]Button{}, out.buttons...)
	buttons = append(buttons, prompt.Buttons...)
	return Reply{
		Text:    strings.Join(parts, "\n\n"),
		Buttons: buttons,
		Files:   out.files,
	}
}

// external bounds one call to a collaborator.
func (m *Machine) external(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.callTimeout)
}

// storeImage downloads a photo and uploads it to the attachment store.
func (m *Machine) storeImage(ctx context.Context, img *Image, name string) (models.StoredFile, error) {
	if img == nil || img.FileID == "" {
		return models.StoredFile{}, errors.New("no image in event")
	}
	if m.images == nil || m.attachments == nil {
		return models.StoredFile{}, errors.New("attachments are not configured")
	}

	callCtx, cancel := m.external(ctx)
	defer cancel()

	data, err := m.images.Fetch(callCtx, img.FileID)
	if err != nil {
		return models.StoredFile{}, fmt.Errorf("failed to download image: %w", err)
	}
	file, err := m.attachments.Upload(callCtx, data, name)
	if err != nil {
		return models.StoredFile{}, fmt.Errorf("failed to upload image: %w", err)
	}
	return file, nil
}

func receiptName(date, place string) string {
	return fmt.Sprintf("Receipt_%s_%s", date, place)
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
