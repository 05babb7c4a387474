// Package mocks provides mock implementations for testing bot handlers.
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramAPI is the subset of the Telegram client used by the bot.
// It is defined here to avoid an import cycle between bot and mocks.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// SentMessage captures a message sent via MockBot.
type SentMessage struct {
	ChatID      any
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup models.ReplyMarkup
}

// EditedMessage captures an edited message via MockBot.
type EditedMessage struct {
	ChatID      any
	MessageID   int
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup models.ReplyMarkup
}

// AnsweredCallback captures a callback query answer via MockBot.
type AnsweredCallback struct {
	CallbackQueryID string
	Text            string
	ShowAlert       bool
}

// SentFile captures a document or photo sent via MockBot.
type SentFile struct {
	ChatID    any
	Filename  string
	Data      []byte
	Caption   string
	ParseMode models.ParseMode
}

// Compile-time check that MockBot implements TelegramAPI.
var _ TelegramAPI = (*MockBot)(nil)

// MockBot simulates Telegram bot operations for testing.
type MockBot struct {
	mu sync.RWMutex

	SentMessages      []SentMessage
	EditedMessages    []EditedMessage
	AnsweredCallbacks []AnsweredCallback
	SentDocuments     []SentFile
	SentPhotos        []SentFile

	// SendMessageError allows simulating SendMessage failures.
	SendMessageError error
	// EditMessageError allows simulating EditMessageText failures.
	EditMessageError error
	// AnswerCallbackError allows simulating AnswerCallbackQuery failures.
	AnswerCallbackError error
	// GetFileError allows simulating GetFile failures.
	GetFileError error
	// SendDocumentError allows simulating SendDocument failures.
	SendDocumentError error
	// SendPhotoError allows simulating SendPhoto failures.
	SendPhotoError error

	// FileToReturn is returned by GetFile.
	FileToReturn *models.File
	// FileDownloadLinkToReturn is returned by FileDownloadLink.
	FileDownloadLinkToReturn string

	// NextMessageID is auto-incremented for each sent message.
	NextMessageID int
}

// NewMockBot creates a new MockBot instance.
func NewMockBot() *MockBot {
	return &MockBot{NextMessageID: 1000}
}

// SendMessage simulates sending a message.
func (m *MockBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendMessageError != nil {
		return nil, m.SendMessageError
	}

	m.SentMessages = append(m.SentMessages, SentMessage{
		ChatID:      params.ChatID,
		Text:        params.Text,
		ParseMode:   params.ParseMode,
		ReplyMarkup: params.ReplyMarkup,
	})
	return m.nextMessage(params.ChatID, params.Text), nil
}

// EditMessageText simulates editing a message.
func (m *MockBot) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EditMessageError != nil {
		return nil, m.EditMessageError
	}

	m.EditedMessages = append(m.EditedMessages, EditedMessage{
		ChatID:      params.ChatID,
		MessageID:   params.MessageID,
		Text:        params.Text,
		ParseMode:   params.ParseMode,
		ReplyMarkup: params.ReplyMarkup,
	})

	return &models.Message{
		ID:   params.MessageID,
		Chat: models.Chat{ID: chatIDToInt64(params.ChatID)},
		Text: params.Text,
	}, nil
}

// AnswerCallbackQuery simulates answering a callback query.
func (m *MockBot) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AnswerCallbackError != nil {
		return false, m.AnswerCallbackError
	}

	m.AnsweredCallbacks = append(m.AnsweredCallbacks, AnsweredCallback{
		CallbackQueryID: params.CallbackQueryID,
		Text:            params.Text,
		ShowAlert:       params.ShowAlert,
	})
	return true, nil
}

// GetFile simulates getting file info from Telegram.
func (m *MockBot) GetFile(_ context.Context, _ *bot.GetFileParams) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetFileError != nil {
		return nil, m.GetFileError
	}
	if m.FileToReturn != nil {
		return m.FileToReturn, nil
	}
	return &models.File{
		FileID:   "test-file-id",
		FilePath: "photos/test.jpg",
	}, nil
}

// FileDownloadLink returns a mock download URL.
func (m *MockBot) FileDownloadLink(_ *models.File) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FileDownloadLinkToReturn != "" {
		return m.FileDownloadLinkToReturn
	}
	return "https://api.telegram.org/file/bot123/photos/test.jpg"
}

// SendDocument records a document.
func (m *MockBot) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendDocumentError != nil {
		return nil, m.SendDocumentError
	}

	m.SentDocuments = append(m.SentDocuments, capture(params.ChatID, params.Document, params.Caption, params.ParseMode))
	return m.nextMessage(params.ChatID, ""), nil
}

// SendPhoto records a photo.
func (m *MockBot) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SendPhotoError != nil {
		return nil, m.SendPhotoError
	}

	m.SentPhotos = append(m.SentPhotos, capture(params.ChatID, params.Photo, params.Caption, params.ParseMode))
	return m.nextMessage(params.ChatID, ""), nil
}

// Reset clears all recorded interactions and configured errors.
func (m *MockBot) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SentMessages = nil
	m.EditedMessages = nil
	m.AnsweredCallbacks = nil
	m.SentDocuments = nil
	m.SentPhotos = nil
	m.SendMessageError = nil
	m.EditMessageError = nil
	m.AnswerCallbackError = nil
	m.GetFileError = nil
	m.SendDocumentError = nil
	m.SendPhotoError = nil
}

// LastSentMessage returns the most recently sent message, or nil if none.
func (m *MockBot) LastSentMessage() *SentMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentMessages) == 0 {
		return nil
	}
	return &m.SentMessages[len(m.SentMessages)-1]
}

// LastEditedMessage returns the most recently edited message, or nil if none.
func (m *MockBot) LastEditedMessage() *EditedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.EditedMessages) == 0 {
		return nil
	}
	return &m.EditedMessages[len(m.EditedMessages)-1]
}

// SentMessageCount returns the number of messages sent.
func (m *MockBot) SentMessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentMessages)
}

// EditedMessageCount returns the number of messages edited.
func (m *MockBot) EditedMessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.EditedMessages)
}

// nextMessage builds the response message. Caller holds the lock.
func (m *MockBot) nextMessage(chatID any, text string) *models.Message {
	msgID := m.NextMessageID
	m.NextMessageID++
	return &models.Message{
		ID:   msgID,
		Chat: models.Chat{ID: chatIDToInt64(chatID)},
		Text: text,
	}
}

func capture(chatID any, input models.InputFile, caption string, mode models.ParseMode) SentFile {
	sent := SentFile{ChatID: chatID, Caption: caption, ParseMode: mode}
	if upload, ok := input.(*models.InputFileUpload); ok {
		sent.Filename = upload.Filename
		if upload.Data != nil {
			sent.Data, _ = io.ReadAll(upload.Data)
		}
	}
	return sent
}

// chatIDToInt64 converts a ChatID to int64.
func chatIDToInt64(chatID any) int64 {
	switch v := chatID.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
