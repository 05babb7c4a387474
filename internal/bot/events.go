package bot

import (
	"strings"

	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/ledger-bot/internal/action"
	"gitlab.com/yelinaung/ledger-bot/internal/flow"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/session"
)

var commands = map[string]flow.Command{
	"start":  flow.CommandStart,
	"menu":   flow.CommandMenu,
	"cancel": flow.CommandCancel,
}

// classify converts an update into the conversation key and the event the
// state machine understands. Updates without a sender are dropped.
func classify(update *models.Update) (session.Key, flow.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		return classifyCallback(update.CallbackQuery)
	case update.Message != nil:
		return classifyMessage(update.Message)
	default:
		return session.Key{}, flow.Event{}, false
	}
}

func classifyCallback(q *models.CallbackQuery) (session.Key, flow.Event, bool) {
	chatID, _, ok := callbackMessage(q)
	if !ok {
		return session.Key{}, flow.Event{}, false
	}

	act, err := action.Decode(q.Data)
	if err != nil {
		logger.Log.Warn().Err(err).
			Str("user", logger.HashUserID(q.From.ID)).
			Msg("Undecodable callback data")
	}

	key := session.Key{ChatID: chatID, UserID: q.From.ID}
	return key, flow.Event{Kind: flow.EventButton, Action: act, FirstName: q.From.FirstName}, true
}

// callbackMessage returns the chat and message a button was pressed on.
func callbackMessage(q *models.CallbackQuery) (chatID int64, messageID int, ok bool) {
	switch {
	case q.Message.Message != nil:
		return q.Message.Message.Chat.ID, q.Message.Message.ID, true
	case q.Message.InaccessibleMessage != nil:
		return q.Message.InaccessibleMessage.Chat.ID, q.Message.InaccessibleMessage.MessageID, true
	default:
		return 0, 0, false
	}
}

func classifyMessage(msg *models.Message) (session.Key, flow.Event, bool) {
	if msg.From == nil {
		return session.Key{}, flow.Event{}, false
	}
	key := session.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	ev := flow.Event{FirstName: msg.From.FirstName}

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		ev.Kind = flow.EventImage
		ev.Image = &flow.Image{FileID: largest.FileID, MimeType: "image/jpeg"}

	case msg.Document != nil:
		if !isReceiptDocument(msg.Document.MimeType) {
			return session.Key{}, flow.Event{}, false
		}
		ev.Kind = flow.EventImage
		ev.Image = &flow.Image{FileID: msg.Document.FileID, MimeType: msg.Document.MimeType}

	default:
		text := strings.TrimSpace(msg.Text)
		if cmd, ok := parseCommand(text); ok {
			ev.Kind = flow.EventCommand
			ev.Command = cmd
			return key, ev, true
		}
		ev.Kind = flow.EventText
		ev.Text = text
	}
	return key, ev, true
}

// parseCommand recognizes "/cmd" and "/cmd@botname" with optional arguments.
func parseCommand(text string) (flow.Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	cmd, ok := commands[strings.ToLower(name)]
	return cmd, ok
}

func isReceiptDocument(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || mimeType == "application/pdf"
}
