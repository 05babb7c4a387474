package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-telegram/bot"
)

// maxDownloadBytes is the Bot API limit for files bots can download.
const maxDownloadBytes = 20 << 20

// fileFetcher downloads files that users sent to the bot.
type fileFetcher struct {
	tg     TelegramAPI
	client *http.Client
}

func newFileFetcher(tg TelegramAPI, client *http.Client) *fileFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &fileFetcher{tg: tg, client: client}
}

// Fetch returns the content of the file with the given id.
func (f *fileFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	file, err := f.tg.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.tg.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// The download URL embeds the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("file exceeds size limit of %d bytes", maxDownloadBytes)
	}
	return data, nil
}
