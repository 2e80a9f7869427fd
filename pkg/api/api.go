// Package api defines the core data structures and interfaces for txnrelay.
package api

import "context"

// RawMessage is a single inbound message from a device-side source
// (SMS broadcast or app notification). It is transient: nothing keeps a
// RawMessage once it has been normalized.
type RawMessage struct {
	// Origin is the sender phone number or the source-app package name.
	// May be empty when the source could not identify the sender.
	Origin string `json:"origin"`
	// Title is the notification title, when the message came from an app
	// notification rather than an SMS. Empty for SMS messages.
	Title string `json:"title,omitempty"`
	// Text is the message or notification body.
	Text string `json:"text"`
	// ReceivedAt is the receipt time in milliseconds since epoch.
	ReceivedAt int64 `json:"receivedAt"`
}

// NormalizedMessage is the canonical form a RawMessage takes before parsing.
// Origin is never empty and Text carries the full parseable body.
type NormalizedMessage struct {
	Origin     string
	Text       string
	ReceivedAt int64
}

// Transaction is a structured financial event extracted from a message,
// or supplied directly by the consumer.
type Transaction struct {
	// ID is unique within the pending store for the lifetime of the process
	// that generated it.
	ID int64 `json:"id"`
	// Amount is the transaction amount. Never negative.
	Amount float64 `json:"amount"`
	// Merchant is the extracted counterparty, falling back to the message
	// origin when no merchant pattern matched.
	Merchant string `json:"merchant"`
	// Timestamp is the message receipt time in milliseconds since epoch,
	// not the time of parsing.
	Timestamp int64 `json:"timestamp"`
	// Tag is the consumer-assigned category. Nil until the consumer sets it;
	// serializes as JSON null.
	Tag *string `json:"tag"`
}

// PendingStore is the durable holding area for transactions awaiting
// consumer pickup. Append must be durable before it returns. Pending makes
// no ordering promise; callers needing chronological order sort by
// Timestamp themselves.
type PendingStore interface {
	// Append adds one record. Appending a record whose ID is already
	// present is a no-op, not an error; inserted reports whether the
	// record was actually added.
	Append(ctx context.Context, txn Transaction) (inserted bool, err error)
	// Pending returns every currently stored record without removing them.
	Pending(ctx context.Context) ([]Transaction, error)
	// Clear removes every record currently in the store.
	Clear(ctx context.Context) error
	// Drain atomically returns and removes every stored record, so a
	// consumer crash cannot cause records to be both returned and retained.
	Drain(ctx context.Context) ([]Transaction, error)
	// Close releases backend resources.
	Close()
}

// PermissionClient negotiates message-access permission with the platform
// collaborator. Implementations that run where permission is implicit
// simply report granted.
type PermissionClient interface {
	RequestPermission(ctx context.Context) (bool, error)
}
