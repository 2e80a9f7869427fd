// Package source adapts external message feeds to the dispatcher's inbound
// stream.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/sidhantk/txnrelay/pkg/api"
)

// Stream reads newline-delimited JSON raw messages from r and forwards them
// to out until EOF or context cancellation. Lines that are not valid JSON
// are skipped with a warning; a read failure of the feed itself is returned
// as a source_read error. The channel is closed when the stream ends.
func Stream(ctx context.Context, r io.Reader, out chan<- api.RawMessage, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	defer close(out)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw api.RawMessage
		if err := json.Unmarshal(line, &raw); err != nil {
			logger.Warn("skipping malformed message line", "error", err)
			continue
		}

		select {
		case out <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return api.SourceReadError("reading message feed", err)
	}

	logger.Info("message feed ended")
	return nil
}
