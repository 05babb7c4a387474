package bot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/ledger-bot/internal/flow"
	"gitlab.com/yelinaung/ledger-bot/internal/logger"
)

// messageSink answers a typed message with new messages.
type messageSink struct {
	tg     TelegramAPI
	chatID int64
}

func (s messageSink) Reply(ctx context.Context, r flow.Reply) error {
	if err := sendFiles(ctx, s.tg, s.chatID, r.Files); err != nil {
		return err
	}
	return sendText(ctx, s.tg, s.chatID, r)
}

// callbackSink answers a button press. The pressed message is edited in
// place unless the reply carries files, which must come before the text.
type callbackSink struct {
	tg        TelegramAPI
	chatID    int64
	messageID int
	queryID   string
	editable  bool
}

func newCallbackSink(tg TelegramAPI, q *models.CallbackQuery) callbackSink {
	chatID, messageID, _ := callbackMessage(q)
	return callbackSink{
		tg:        tg,
		chatID:    chatID,
		messageID: messageID,
		queryID:   q.ID,
		editable:  q.Message.Message != nil,
	}
}

func (s callbackSink) Reply(ctx context.Context, r flow.Reply) error {
	if _, err := s.tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: s.queryID}); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to answer callback query")
	}

	if len(r.Files) > 0 || !s.editable {
		if err := sendFiles(ctx, s.tg, s.chatID, r.Files); err != nil {
			return err
		}
		return sendText(ctx, s.tg, s.chatID, r)
	}

	_, err := s.tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      s.chatID,
		MessageID:   s.messageID,
		Text:        r.Text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard(r.Buttons),
	})
	if err == nil {
		return nil
	}

	logger.Log.Debug().Err(err).
		Str("chat", logger.HashChatID(s.chatID)).
		Msg("Edit failed, sending a new message")
	return sendText(ctx, s.tg, s.chatID, r)
}

func sendText(ctx context.Context, tg TelegramAPI, chatID int64, r flow.Reply) error {
	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        r.Text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: keyboard(r.Buttons),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func sendFiles(ctx context.Context, tg TelegramAPI, chatID int64, files []flow.File) error {
	for _, f := range files {
		upload := &models.InputFileUpload{Filename: f.Name, Data: bytes.NewReader(f.Data)}

		var err error
		if f.Photo {
			_, err = tg.SendPhoto(ctx, &bot.SendPhotoParams{
				ChatID:    chatID,
				Photo:     upload,
				Caption:   f.Caption,
				ParseMode: models.ParseModeHTML,
			})
		} else {
			_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
				ChatID:    chatID,
				Document:  upload,
				Caption:   f.Caption,
				ParseMode: models.ParseModeHTML,
			})
		}
		if err != nil {
			return fmt.Errorf("failed to send %s: %w", f.Name, err)
		}
	}
	return nil
}
