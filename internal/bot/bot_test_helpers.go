package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"gitlab.com/yelinaung/ledger-bot/internal/flow"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/session"
)

// fixedNow is the clock of every test machine.
var fixedNow = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

// memoryAttachments records uploads and hands out predictable links.
type memoryAttachments struct {
	mu      sync.Mutex
	uploads map[string][]byte
	err     error
}

func (a *memoryAttachments) Upload(_ context.Context, data []byte, name string) (models.StoredFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return models.StoredFile{}, a.err
	}
	if a.uploads == nil {
		a.uploads = make(map[string][]byte)
	}
	a.uploads[name] = data
	return models.StoredFile{ID: name, Link: "https://files.example/" + name}, nil
}

// setupTestMachine builds a state machine over ledger for bot tests.
func setupTestMachine(t *testing.T, ledger flow.LedgerStore, attachments flow.AttachmentStore, images flow.ImageFetcher) *flow.Machine {
	t.Helper()

	m, err := flow.New(flow.Deps{
		Ledger:      ledger,
		Attachments: attachments,
		Images:      images,
		Sessions:    session.NewStore(time.Hour, flow.NewSession),
		Now:         func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("failed to create machine: %v", err)
	}
	return m
}

// setupTestBot creates a Bot that hands updates to h without a Telegram
// connection.
func setupTestBot(h Handler) *Bot {
	return &Bot{handler: h}
}

// recordingHandler captures classified events.
type recordingHandler struct {
	mu     sync.Mutex
	keys   []session.Key
	events []flow.Event
	reply  flow.Reply
	err    error
}

func (h *recordingHandler) Handle(ctx context.Context, key session.Key, ev flow.Event, sink flow.ReplySink) error {
	h.mu.Lock()
	h.keys = append(h.keys, key)
	h.events = append(h.events, ev)
	reply, err := h.reply, h.err
	h.mu.Unlock()

	if err != nil {
		return err
	}
	return sink.Reply(ctx, reply)
}
