package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const defaultHashSalt = "ledger-bot-default-salt"

var hashSalt = defaultHashSalt

// InitHashSalt sets the salt used to hash identifiers. An empty salt keeps
// the built-in default.
func InitHashSalt(salt string) {
	if salt == "" {
		Log.Warn().Msg("LOG_HASH_SALT is not set, using the built-in salt")
		hashSalt = defaultHashSalt
		return
	}
	hashSalt = salt
}

func hashID(id int64) string {
	data := fmt.Sprintf("%d:%s", id, hashSalt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:8]
}

// HashUserID creates a privacy-preserving hash of a user ID.
func HashUserID(userID int64) string {
	return hashID(userID)
}

// HashChatID creates a privacy-preserving hash of a chat ID.
func HashChatID(chatID int64) string {
	return hashID(chatID)
}

// SanitizeText redacts user-provided text, keeping its length and a short prefix.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}
	if strings.HasPrefix(text, "/") {
		if cmd, _, _ := strings.Cut(text, " "); len(cmd) <= 32 {
			return cmd
		}
	}

	runes := []rune(text)
	if len(runes) <= 10 {
		return fmt.Sprintf("<%d chars>", len(runes))
	}
	return fmt.Sprintf("%s...<%d chars>", string(runes[:3]), len(runes))
}
