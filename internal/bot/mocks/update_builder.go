package mocks

import (
	"github.com/go-telegram/bot/models"
)

// UpdateBuilder helps construct test Update objects.
type UpdateBuilder struct {
	update *models.Update
}

// NewUpdateBuilder creates a new UpdateBuilder.
func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{update: &models.Update{}}
}

func testUser(userID int64) models.User {
	return models.User{
		ID:        userID,
		FirstName: "Test",
		LastName:  "User",
		Username:  "testuser",
	}
}

// WithMessage sets a private-chat message on the update.
func (b *UpdateBuilder) WithMessage(chatID, userID int64, text string) *UpdateBuilder {
	from := testUser(userID)
	b.update.Message = &models.Message{
		ID:   1,
		Chat: models.Chat{ID: chatID, Type: "private"},
		From: &from,
		Text: text,
	}
	return b
}

// WithMessageID sets a custom message ID.
func (b *UpdateBuilder) WithMessageID(messageID int) *UpdateBuilder {
	if b.update.Message != nil {
		b.update.Message.ID = messageID
	}
	return b
}

// WithFrom sets custom user details on the message or callback query.
func (b *UpdateBuilder) WithFrom(userID int64, username, firstName, lastName string) *UpdateBuilder {
	user := models.User{
		ID:        userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}
	if b.update.Message != nil {
		b.update.Message.From = &user
	}
	if b.update.CallbackQuery != nil {
		b.update.CallbackQuery.From = user
	}
	return b
}

// WithCallbackQuery sets a callback query pressed on an accessible message.
func (b *UpdateBuilder) WithCallbackQuery(callbackID string, chatID, userID int64, messageID int, data string) *UpdateBuilder {
	b.update.CallbackQuery = &models.CallbackQuery{
		ID:   callbackID,
		From: testUser(userID),
		Message: models.MaybeInaccessibleMessage{
			Type: models.MaybeInaccessibleMessageTypeMessage,
			Message: &models.Message{
				ID:   messageID,
				Chat: models.Chat{ID: chatID, Type: "private"},
			},
		},
		Data: data,
	}
	return b
}

// WithInaccessibleCallbackQuery sets a callback query pressed on a message
// the bot can no longer read, e.g. one older than 48 hours.
func (b *UpdateBuilder) WithInaccessibleCallbackQuery(callbackID string, chatID, userID int64, messageID int, data string) *UpdateBuilder {
	b.update.CallbackQuery = &models.CallbackQuery{
		ID:   callbackID,
		From: testUser(userID),
		Message: models.MaybeInaccessibleMessage{
			Type: models.MaybeInaccessibleMessageTypeInaccessibleMessage,
			InaccessibleMessage: &models.InaccessibleMessage{
				Chat:      models.Chat{ID: chatID, Type: "private"},
				MessageID: messageID,
			},
		},
		Data: data,
	}
	return b
}

// WithPhoto adds a photo in two sizes to the message. The larger size
// carries fileID.
func (b *UpdateBuilder) WithPhoto(fileID string) *UpdateBuilder {
	if b.update.Message == nil {
		b.WithMessage(0, 0, "")
	}
	b.update.Message.Photo = []models.PhotoSize{
		{
			FileID:       fileID + "_small",
			FileUniqueID: fileID + "_small_unique",
			Width:        320,
			Height:       240,
		},
		{
			FileID:       fileID,
			FileUniqueID: fileID + "_unique",
			Width:        1280,
			Height:       960,
		},
	}
	return b
}

// WithDocument adds a document to the message.
func (b *UpdateBuilder) WithDocument(fileID, fileName, mimeType string) *UpdateBuilder {
	if b.update.Message == nil {
		b.WithMessage(0, 0, "")
	}
	b.update.Message.Document = &models.Document{
		FileID:       fileID,
		FileUniqueID: fileID + "_unique",
		FileName:     fileName,
		MimeType:     mimeType,
	}
	return b
}

// WithCaption sets the media caption of the message.
func (b *UpdateBuilder) WithCaption(caption string) *UpdateBuilder {
	if b.update.Message != nil {
		b.update.Message.Caption = caption
	}
	return b
}

// Build returns the constructed Update.
func (b *UpdateBuilder) Build() *models.Update {
	return b.update
}

// MessageUpdate creates a simple message update.
func MessageUpdate(chatID, userID int64, text string) *models.Update {
	return NewUpdateBuilder().WithMessage(chatID, userID, text).Build()
}

// CommandUpdate creates a command message update.
func CommandUpdate(chatID, userID int64, command string) *models.Update {
	return MessageUpdate(chatID, userID, command)
}

// CallbackQueryUpdate creates a callback query update.
func CallbackQueryUpdate(chatID, userID int64, messageID int, data string) *models.Update {
	return NewUpdateBuilder().
		WithCallbackQuery("callback-query-id", chatID, userID, messageID, data).
		Build()
}

// PhotoUpdate creates a photo message update.
func PhotoUpdate(chatID, userID int64, fileID string) *models.Update {
	return NewUpdateBuilder().
		WithMessage(chatID, userID, "").
		WithPhoto(fileID).
		Build()
}
