package flow

import (
	"context"

	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/models"
)

// EventKind classifies inbound updates.
type EventKind int

// Event kinds.
const (
	EventCommand EventKind = iota
	EventText
	EventButton
	EventImage
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventButton:
		return "button"
	case EventImage:
		return "image"
	}
	return "unknown"
}

// Command is a top-level slash command without the slash.
type Command string

// Recognized commands.
const (
	CommandStart  Command = "start"
	CommandMenu   Command = "menu"
	CommandCancel Command = "cancel"
)

// Image references a photo held by the chat service.
type Image struct {
	FileID   string
	MimeType string
}

// Event is one classified inbound update.
type Event struct {
	Kind    EventKind
	Command Command
	Text    string
	Action  action.Action
	Image   *Image
	// FirstName is used for greetings only.
	FirstName string
}

// Button is one labelled inline button.
type Button struct {
	Label  string
	Action action.Action
}

// File is an attachment sent with a reply.
type File struct {
	Name    string
	Data    []byte
	Caption string
	// Photo sends the file as an inline image instead of a document.
	Photo bool
}

// Reply is what the machine sends back. Text is HTML.
type Reply struct {
	Text    string
	Buttons [][]Button
	Files   []File
}

// ReplySink delivers a reply. Implementations either send a new message or
// edit the message whose button was pressed.
type ReplySink interface {
	Reply(ctx context.Context, r Reply) error
}

// LedgerStore is the tabular ledger. Rows are 1-based and row 1 is the header.
type LedgerStore interface {
	AppendRow(ctx context.Context, row models.Row) (int, error)
	GetAllRows(ctx context.Context) ([]models.Row, error)
	GetRow(ctx context.Context, index int) (models.Row, error)
	UpdateCell(ctx context.Context, index int, field models.Field, value string) error
	DeleteRow(ctx context.Context, index int) error
}

// AttachmentStore keeps receipt images.
type AttachmentStore interface {
	Upload(ctx context.Context, data []byte, name string) (models.StoredFile, error)
}

// ImageFetcher downloads an image from the chat service.
type ImageFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// Suggester guesses the category and tag of an expense from its place.
type Suggester interface {
	Suggest(ctx context.Context, place string) (models.Suggestion, error)
}
