// Package dispatch runs the normalize, parse, store and push pipeline over
// the inbound message stream.
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sidhantk/txnrelay/pkg/api"
	"github.com/sidhantk/txnrelay/pkg/live"
	"github.com/sidhantk/txnrelay/pkg/normalizer"
	"github.com/sidhantk/txnrelay/pkg/parser"
)

// Dispatcher consumes raw messages and turns the ones that parse into
// durable, optionally live-delivered transactions. The durable append is
// unconditional; the live push happens only while a consumer session is
// subscribed and is never owed a replay.
type Dispatcher struct {
	store   api.PendingStore
	session *live.Session
	logger  *slog.Logger
}

// New creates a dispatcher writing to store and pushing to session.
func New(store api.PendingStore, session *live.Session, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		store:   store,
		session: session,
		logger:  logger,
	}
}

// Handle processes one raw message. A message with no recognized transaction
// returns (nil, nil) and changes no state. A storage failure is fatal for
// this message and propagates; the live push that would have followed is
// skipped so the two paths never disagree about whether the record exists.
func (d *Dispatcher) Handle(ctx context.Context, raw api.RawMessage) (*api.Transaction, error) {
	msg := normalizer.Normalize(raw)

	txn, ok := parser.Parse(msg)
	if !ok {
		d.logger.Debug("no transaction in message", "origin", msg.Origin)
		return nil, nil
	}

	if _, err := d.store.Append(ctx, *txn); err != nil {
		return nil, err
	}

	d.session.Publish(*txn)

	d.logger.Info("transaction extracted",
		"id", txn.ID,
		"amount", txn.Amount,
		"merchant", txn.Merchant,
	)
	return txn, nil
}

// Run consumes the fire-and-forget source stream until the context is
// canceled or the channel closes. Per-message storage failures are logged
// and do not stop the stream; the source offers no acknowledgment protocol
// to report them back through.
func (d *Dispatcher) Run(ctx context.Context, in <-chan api.RawMessage) error {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return ctx.Err()
		case raw, ok := <-in:
			if !ok {
				d.logger.Info("message source closed")
				return nil
			}
			if _, err := d.Handle(ctx, raw); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("failed to process message", "origin", raw.Origin, "error", err)
			}
		}
	}
}
