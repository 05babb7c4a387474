// Package bot connects the Telegram Bot API to the conversation state machine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/ledger-bot/internal/flow"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
	"gitlab.com/yelinaung/ledger-bot/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// pollTimeout is the long-polling timeout of getUpdates.
const pollTimeout = time.Minute

// Handler receives classified events.
type Handler interface {
	Handle(ctx context.Context, key session.Key, ev flow.Event, sink flow.ReplySink) error
}

// botCommands are registered with Telegram so clients can offer them.
var botCommands = []tgmodels.BotCommand{
	{Command: "start", Description: "Record a new expense"},
	{Command: "menu", Description: "Show the main menu"},
	{Command: "cancel", Description: "Cancel the current step"},
}

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot     *bot.Bot
	files   *fileFetcher
	handler Handler
}

// New creates a new Bot instance. Updates are not received until Start.
func New(token string) (*Bot, error) {
	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	b := &Bot{}

	opts := []bot.Option{
		bot.WithHTTPClient(pollTimeout, client),
		bot.WithMiddlewares(b.logMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	telegramBot, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.files = newFileFetcher(telegramBot, client)
	b.registerHandlers()

	return b, nil
}

// Images returns the fetcher for files users send to the bot.
func (b *Bot) Images() flow.ImageFetcher {
	return b.files
}

// Start registers the command list and polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("bot: handler is required")
	}
	b.handler = h

	if _, err := b.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: botCommands}); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to register bot commands")
	}

	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
	logger.Log.Info().Msg("Bot stopped polling")
	return nil
}

// registerHandlers sets up command and button handlers. Everything else
// reaches defaultHandler.
func (b *Bot) registerHandlers() {
	for _, c := range botCommands {
		b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/"+c.Command, bot.MatchTypePrefix, b.handleUpdate)
	}
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, b.handleUpdate)
}

// logMiddleware records every inbound update without user content.
func (b *Bot) logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		logUserAction(update)
		next(ctx, tgBot, update)
	}
}

// logUserAction logs the user's input/action.
func logUserAction(update *tgmodels.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		event := logger.Log.Info().Str("chat", logger.HashChatID(msg.Chat.ID))
		if msg.From != nil {
			event = event.Str("user", logger.HashUserID(msg.From.ID))
		}

		switch {
		case len(msg.Photo) > 0:
			event = event.Str("type", "photo")
		case msg.Document != nil:
			event = event.Str("type", "document").Str("mime_type", msg.Document.MimeType)
		default:
			event = event.Str("type", "text").Str("text", logger.SanitizeText(msg.Text))
		}
		event.Msg("User input")

	case update.CallbackQuery != nil:
		logger.Log.Info().
			Str("user", logger.HashUserID(update.CallbackQuery.From.ID)).
			Str("data", update.CallbackQuery.Data).
			Msg("Callback query")
	}
}

// handleUpdate handles commands, buttons and free input.
func (b *Bot) handleUpdate(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.handleUpdateCore(ctx, tgBot, update)
}

// handleUpdateCore is the testable implementation of handleUpdate.
func (b *Bot) handleUpdateCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if b.handler == nil {
		logger.Log.Error().Msg("Update received before the bot was started")
		return
	}

	key, ev, ok := classify(update)
	if !ok {
		logger.Log.Debug().Msg("Ignoring unsupported update")
		return
	}

	var sink flow.ReplySink = messageSink{tg: tg, chatID: key.ChatID}
	if update.CallbackQuery != nil {
		sink = newCallbackSink(tg, update.CallbackQuery)
	}

	if err := b.handler.Handle(ctx, key, ev, sink); err != nil {
		logger.Log.Error().Err(err).
			Str("user", logger.HashUserID(key.UserID)).
			Stringer("event", ev.Kind).
			Msg("Failed to handle update")
	}
}

// defaultHandler handles text, photos and documents outside of commands.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil && update.CallbackQuery == nil {
		return
	}
	b.handleUpdateCore(ctx, tgBot, update)
}
