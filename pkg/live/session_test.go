package live

import (
	"testing"
	"time"

	"github.com/sidhantk/txnrelay/pkg/api"
)

func TestPublish_DeliversToActiveSink(t *testing.T) {
	s := NewSession(nil)
	sink := s.Subscribe(4)

	txn := api.Transaction{ID: 1, Amount: 100, Merchant: "Big Bazaar"}
	s.Publish(txn)

	select {
	case got := <-sink:
		if got.ID != txn.ID || got.Merchant != txn.Merchant {
			t.Errorf("got %+v, want %+v", got, txn)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for live push")
	}

	// Exactly one push per publish.
	select {
	case extra := <-sink:
		t.Errorf("unexpected second push: %+v", extra)
	default:
	}
}

func TestPublish_PreservesOrder(t *testing.T) {
	s := NewSession(nil)
	sink := s.Subscribe(8)

	for i := int64(1); i <= 5; i++ {
		s.Publish(api.Transaction{ID: i})
	}

	for i := int64(1); i <= 5; i++ {
		got := <-sink
		if got.ID != i {
			t.Fatalf("out of order: got id %d, want %d", got.ID, i)
		}
	}
}

func TestPublish_DroppedWhileInactive(t *testing.T) {
	s := NewSession(nil)

	// Must not panic or block with no subscriber.
	s.Publish(api.Transaction{ID: 1})

	sink := s.Subscribe(4)
	select {
	case txn := <-sink:
		t.Errorf("no historical replay is owed, got %+v", txn)
	default:
	}
}

func TestSubscribe_ReplacesExistingSink(t *testing.T) {
	s := NewSession(nil)
	first := s.Subscribe(4)
	second := s.Subscribe(4)

	if _, open := <-first; open {
		t.Error("replaced sink must be closed")
	}

	s.Publish(api.Transaction{ID: 2})
	select {
	case got := <-second:
		if got.ID != 2 {
			t.Errorf("got id %d, want 2", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for push on replacement sink")
	}
}

func TestUnsubscribe(t *testing.T) {
	s := NewSession(nil)

	// No-op while inactive.
	s.Unsubscribe()

	sink := s.Subscribe(4)
	if !s.Active() {
		t.Error("expected active session after subscribe")
	}

	s.Unsubscribe()
	if s.Active() {
		t.Error("expected inactive session after unsubscribe")
	}
	if _, open := <-sink; open {
		t.Error("sink must be closed on unsubscribe")
	}

	// Pushes after unsubscribe are dropped at this boundary.
	s.Publish(api.Transaction{ID: 3})
}

func TestPublish_FullBufferDoesNotBlock(t *testing.T) {
	s := NewSession(nil)
	s.Subscribe(1)

	done := make(chan struct{})
	go func() {
		s.Publish(api.Transaction{ID: 1})
		s.Publish(api.Transaction{ID: 2}) // buffer full, must drop
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
