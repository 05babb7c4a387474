package bot

import (
	"github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/ledger-bot/internal/flow"
)

// keyboard renders flow buttons as an inline keyboard. It returns nil when
// there are no buttons so that the message carries no markup.
func keyboard(rows [][]flow.Button) models.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}

	inline := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Label,
				CallbackData: b.Action.Encode(),
			})
		}
		inline = append(inline, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: inline}
}
