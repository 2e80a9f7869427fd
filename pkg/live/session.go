// Package live implements the real-time push path to an active consumer
// session.
package live

import (
	"log/slog"
	"sync"

	"github.com/sidhantk/txnrelay/pkg/api"
)

// DefaultBuffer is the subscriber channel buffer used when Subscribe is
// called with a non-positive size.
const DefaultBuffer = 16

// Session owns the single live delivery sink. It is inactive until a
// consumer subscribes; while inactive, published transactions are dropped
// at this boundary (durability is the pending store's job, not this one's).
// At most one sink exists at a time: subscribing again replaces the
// previous one. Safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	sink   chan api.Transaction
	logger *slog.Logger
}

// NewSession creates an inactive session.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{logger: logger}
}

// Subscribe activates the session and returns the channel subsequent
// transactions are pushed to, in publish order. There is no historical
// replay; delivery begins with the next published transaction. If a sink
// already exists it is closed and replaced.
func (s *Session) Subscribe(buffer int) <-chan api.Transaction {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink != nil {
		close(s.sink)
		s.logger.Debug("replacing live delivery sink")
	}
	s.sink = make(chan api.Transaction, buffer)
	s.logger.Info("live delivery session active", "buffer", buffer)
	return s.sink
}

// Unsubscribe deactivates the session and closes the sink. Calling it while
// inactive is a no-op.
func (s *Session) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return
	}
	close(s.sink)
	s.sink = nil
	s.logger.Info("live delivery session inactive")
}

// Publish pushes a transaction to the active sink. While inactive the
// transaction is dropped here. Publish never blocks the parse path: if the
// subscriber has fallen behind and its buffer is full, the push is dropped
// and logged.
func (s *Session) Publish(txn api.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return
	}

	select {
	case s.sink <- txn:
	default:
		s.logger.Warn("live sink full, dropping push", "id", txn.ID)
	}
}

// Active reports whether a consumer is currently subscribed.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink != nil
}
