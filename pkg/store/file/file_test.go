package file

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sidhantk/txnrelay/pkg/api"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pending_transactions.json")
	s, err := New(path, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s, path
}

func tagged(s string) *string { return &s }

func TestAppendAndPending(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	txn := api.Transaction{
		ID:        1,
		Amount:    1250.50,
		Merchant:  "Big Bazaar",
		Timestamp: 1700000000000,
		Tag:       tagged("groceries"),
	}
	if _, err := s.Append(ctx, txn); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("pending: got %d records, want 1", len(got))
	}
	if got[0].ID != txn.ID || got[0].Amount != txn.Amount ||
		got[0].Merchant != txn.Merchant || got[0].Timestamp != txn.Timestamp {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got[0], txn)
	}
	if got[0].Tag == nil || *got[0].Tag != "groceries" {
		t.Errorf("tag round-trip failed: got %v", got[0].Tag)
	}
}

func TestAppend_DuplicateIDIsNoOp(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	txn := api.Transaction{ID: 7, Amount: 10, Merchant: "A", Timestamp: 1}
	inserted, err := s.Append(ctx, txn)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !inserted {
		t.Error("first append must report inserted")
	}
	txn.Merchant = "B"
	inserted, err = s.Append(ctx, txn)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if inserted {
		t.Error("duplicate append must report not inserted")
	}

	got, _ := s.Pending(ctx)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Merchant != "A" {
		t.Errorf("first write must win, got merchant %q", got[0].Merchant)
	}
}

func TestPending_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if _, err := s.Append(ctx, api.Transaction{ID: i, Amount: float64(i)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	first, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("first pending: %v", err)
	}
	second, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("second pending: %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Errorf("pending must not mutate: got %d then %d, want 3 both times",
			len(first), len(second))
	}
}

func TestDurabilityAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, api.Transaction{ID: 1, Amount: 500, Merchant: "John Doe", Timestamp: 99}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Simulate process death and restart: no Close, just reopen.
	reopened, err := New(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	got, err := reopened.Pending(ctx)
	if err != nil {
		t.Fatalf("pending after reopen: %v", err)
	}
	if len(got) != 1 || got[0].Merchant != "John Doe" || got[0].Amount != 500 {
		t.Errorf("record did not survive restart: %+v", got)
	}
}

func TestClear_DestructiveAndTotal(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	a := api.Transaction{ID: 1, Amount: 10, Merchant: "A"}
	b := api.Transaction{ID: 2, Amount: 20, Merchant: "B"}
	for _, txn := range []api.Transaction{a, b} {
		if _, err := s.Append(ctx, txn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	got, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("after clear: got %d records, want 0", len(got))
	}

	// The clear must be durable too.
	reopened, err := New(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ = reopened.Pending(ctx)
	if len(got) != 0 {
		t.Errorf("clear did not persist: got %d records", len(got))
	}
}

// A Clear that fails to persist must leave the store exactly as it was:
// otherwise a later append would rewrite the file from an emptied in-memory
// set and silently drop every record the failed clear never removed.
func TestClear_PersistFailureKeepsRecords(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, api.Transaction{ID: 1, Amount: 10, Merchant: "A"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s.path = filepath.Join(t.TempDir(), "gone", "pending_transactions.json")
	if err := s.Clear(ctx); err == nil {
		t.Fatal("clear must fail when the store cannot be written")
	}
	s.path = path

	got, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("failed clear must keep records: %+v", got)
	}

	if _, err := s.Append(ctx, api.Transaction{ID: 2, Amount: 20, Merchant: "B"}); err != nil {
		t.Fatalf("append after failed clear: %v", err)
	}

	reopened, err := New(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ = reopened.Pending(ctx)
	if len(got) != 2 {
		t.Errorf("after failed clear and one append: got %d records on disk, want 2", len(got))
	}
}

func TestDrain_AtomicReadAndRemove(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if _, err := s.Append(ctx, api.Transaction{ID: i, Amount: float64(i * 100)}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	drained, err := s.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(drained) != 5 {
		t.Errorf("drain: got %d records, want 5", len(drained))
	}

	again, err := s.Drain(ctx)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second drain: got %d records, want 0", len(again))
	}
}

// Merchant and tag content must never corrupt record boundaries, whatever
// characters they contain.
func TestHostileContentRoundTrip(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	txn := api.Transaction{
		ID:        1,
		Amount:    42,
		Merchant:  `Big|Bazaar "north" branch` + "\nsecond line",
		Timestamp: 7,
		Tag:       tagged("food|misc,etc"),
	}
	if _, err := s.Append(ctx, txn); err != nil {
		t.Fatalf("append: %v", err)
	}

	reopened, err := New(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Merchant != txn.Merchant {
		t.Errorf("merchant corrupted: got %q, want %q", got[0].Merchant, txn.Merchant)
	}
	if got[0].Tag == nil || *got[0].Tag != *txn.Tag {
		t.Errorf("tag corrupted: got %v, want %q", got[0].Tag, *txn.Tag)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := s.Append(ctx, api.Transaction{ID: id, Amount: 1}); err != nil {
				t.Errorf("append %d: %v", id, err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	got, err := s.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(got) != n {
		t.Errorf("concurrent appends lost records: got %d, want %d", len(got), n)
	}
}
