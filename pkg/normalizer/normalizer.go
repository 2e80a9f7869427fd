// Package normalizer turns raw inbound messages into the canonical form the
// parser consumes.
package normalizer

import "github.com/sidhantk/txnrelay/pkg/api"

// UnknownOrigin is substituted when the source collaborator could not
// identify the sender.
const UnknownOrigin = "Unknown"

// Normalize converts a RawMessage into its canonical form. It is pure and
// total: it never fails and has no side effects. A missing origin becomes
// UnknownOrigin; a notification title, when present, is folded into the text
// the way the platform listener surfaces it.
func Normalize(raw api.RawMessage) api.NormalizedMessage {
	origin := raw.Origin
	if origin == "" {
		origin = UnknownOrigin
	}

	text := raw.Text
	if raw.Title != "" {
		text = raw.Title + " - " + raw.Text
	}

	return api.NormalizedMessage{
		Origin:     origin,
		Text:       text,
		ReceivedAt: raw.ReceivedAt,
	}
}
