package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	InitHashSalt("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

func TestHashUserID(t *testing.T) {
	t.Run("produces consistent hash for same user ID", func(t *testing.T) {
		require.Equal(t, HashUserID(12345), HashUserID(12345))
	})

	t.Run("produces different hashes for different user IDs", func(t *testing.T) {
		require.NotEqual(t, HashUserID(12345), HashUserID(67890))
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		require.Len(t, HashUserID(12345), 8)
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashUserID(12345)
		InitHashSalt("different-salt")
		require.NotEqual(t, hash1, HashUserID(12345))
	})

	t.Run("empty salt falls back to default", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		InitHashSalt("")
		require.Equal(t, defaultHashSalt, hashSalt)
	})
}

func TestHashChatID(t *testing.T) {
	require.Equal(t, HashChatID(-100123), HashChatID(-100123))
	require.Equal(t, HashUserID(42), HashChatID(42))
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "<empty>"},
		{name: "short", in: "Cafe", want: "<4 chars>"},
		{name: "long", in: "Downtown Bakery & Co", want: "Dow...<20 chars>"},
		{name: "multibyte", in: "Кафе на углу улицы", want: "Каф...<18 chars>"},
		{name: "command kept", in: "/start now", want: "/start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}
