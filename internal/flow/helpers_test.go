package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/repository"
	"gitlab.com/yelinaung/ledger-bot/internal/session"
)

// testNow is a Wednesday.
var testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

var testKey = session.Key{ChatID: 100, UserID: 42}

var errBoom = errors.New("boom")

type recordingSink struct {
	mu      sync.Mutex
	replies []Reply
	err     error
}

func (s *recordingSink) Reply(_ context.Context, r Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
	return s.err
}

func (s *recordingSink) last(t *testing.T) Reply {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.replies, "no reply recorded")
	return s.replies[len(s.replies)-1]
}

type fakeAttachments struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func (f *fakeAttachments) Upload(_ context.Context, data []byte, name string) (models.StoredFile, error) {
	if f.err != nil {
		return models.StoredFile{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[name] = data
	return models.StoredFile{ID: name, Link: "https://files.example/" + name}, nil
}

type fakeImages struct {
	files map[string][]byte
	err   error
}

func (f *fakeImages) Fetch(_ context.Context, fileID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// faultyLedger fails selected calls and delegates the rest.
type faultyLedger struct {
	*repository.MemoryLedger
	appendErr error
	readErr   error
	getErr    error
	updateErr error
	deleteErr error
	updates   int
	deletes   int
}

func (l *faultyLedger) AppendRow(ctx context.Context, row models.Row) (int, error) {
	if l.appendErr != nil {
		return 0, l.appendErr
	}
	return l.MemoryLedger.AppendRow(ctx, row)
}

func (l *faultyLedger) GetAllRows(ctx context.Context) ([]models.Row, error) {
	if l.readErr != nil {
		return nil, l.readErr
	}
	return l.MemoryLedger.GetAllRows(ctx)
}

func (l *faultyLedger) GetRow(ctx context.Context, index int) (models.Row, error) {
	if l.getErr != nil {
		return models.Row{}, l.getErr
	}
	return l.MemoryLedger.GetRow(ctx, index)
}

func (l *faultyLedger) UpdateCell(ctx context.Context, index int, field models.Field, value string) error {
	l.updates++
	if l.updateErr != nil {
		return l.updateErr
	}
	return l.MemoryLedger.UpdateCell(ctx, index, field, value)
}

func (l *faultyLedger) DeleteRow(ctx context.Context, index int) error {
	l.deletes++
	if l.deleteErr != nil {
		return l.deleteErr
	}
	return l.MemoryLedger.DeleteRow(ctx, index)
}

type testEnv struct {
	t           *testing.T
	machine     *Machine
	ledger      *faultyLedger
	attachments *fakeAttachments
	images      *fakeImages
	sink        *recordingSink
	clock       time.Time
}

func newTestEnv(t *testing.T, rows ...models.Row) *testEnv {
	t.Helper()

	env := &testEnv{
		t:           t,
		ledger:      &faultyLedger{MemoryLedger: repository.NewMemoryLedger(rows...)},
		attachments: &fakeAttachments{},
		images:      &fakeImages{files: map[string][]byte{"photo-1": []byte("\x89PNG fake")}},
		sink:        &recordingSink{},
		clock:       testNow,
	}
	now := func() time.Time { return env.clock }

	m, err := New(Deps{
		Ledger:      env.ledger,
		Attachments: env.attachments,
		Images:      env.images,
		Sessions:    session.NewStore(time.Hour, NewSession, session.WithClock(now)),
		Now:         now,
		CallTimeout: time.Second,
	})
	require.NoError(t, err)
	env.machine = m
	return env
}

func (e *testEnv) send(ev Event) Reply {
	e.t.Helper()
	require.NoError(e.t, e.machine.Handle(context.Background(), testKey, ev, e.sink))
	return e.sink.last(e.t)
}

func (e *testEnv) press(a action.Action) Reply {
	e.t.Helper()
	return e.send(Event{Kind: EventButton, Action: a})
}

func (e *testEnv) say(text string) Reply {
	e.t.Helper()
	return e.send(Event{Kind: EventText, Text: text})
}

func (e *testEnv) command(c Command) Reply {
	e.t.Helper()
	return e.send(Event{Kind: EventCommand, Command: c, FirstName: "Ada"})
}

func (e *testEnv) photo(fileID string) Reply {
	e.t.Helper()
	return e.send(Event{Kind: EventImage, Image: &Image{FileID: fileID, MimeType: "image/jpeg"}})
}

// state peeks at the session without changing it.
func (e *testEnv) state() State {
	e.t.Helper()
	lease, err := e.machine.Sessions().Acquire(context.Background(), testKey)
	require.NoError(e.t, err)
	defer lease.Release()
	return lease.Value().State
}

func (e *testEnv) rows() []models.Row {
	e.t.Helper()
	rows, err := e.ledger.MemoryLedger.GetAllRows(context.Background())
	require.NoError(e.t, err)
	return rows[1:]
}

// fillDraft walks the entry flow up to the receipt step.
func (e *testEnv) fillDraft(place string) {
	e.t.Helper()
	e.press(action.NewExpense())
	e.press(action.Month(2025, time.January))
	e.press(action.Day("2025.01.01"))
	e.say(place)
	e.say("12.5")
	e.press(action.Category("Food"))
	e.say("R1")
	e.press(action.Tag("Personal"))
	require.Equal(e.t, StateReceiptUpload, e.state())
}

func sampleRow(place string) models.Row {
	return models.Row{"2025.01.01", place, "12.5", "Food", "R1", "Personal", models.AttachmentNone}
}

func datedRow(date, place, amount string) models.Row {
	return models.Row{date, place, amount, "Food", "R1", "Personal", models.AttachmentNone}
}

func hasAction(buttons [][]Button, a action.Action) bool {
	for _, row := range buttons {
		for _, b := range row {
			if b.Action.Encode() == a.Encode() {
				return true
			}
		}
	}
	return false
}

func countAction(buttons [][]Button, kind action.Kind) int {
	n := 0
	for _, row := range buttons {
		for _, b := range row {
			if b.Action.Kind == kind {
				n++
			}
		}
	}
	return n
}

func requireMenu(t *testing.T, r Reply) {
	t.Helper()
	require.True(t, strings.HasSuffix(r.Text, msgMenu), "reply should end with the menu prompt: %q", r.Text)
	require.True(t, hasAction(r.Buttons, action.NewExpense()))
}
