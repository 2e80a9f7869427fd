package source

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sidhantk/txnrelay/pkg/api"
)

func TestStream(t *testing.T) {
	feed := strings.Join([]string{
		`{"origin":"HDFCBK","text":"Rs. 100 spent at Shop","receivedAt":1700000000000}`,
		`not json at all`,
		``,
		`{"origin":"AX-ICICI","text":"You received INR500 from John Doe","receivedAt":1700000001000}`,
	}, "\n")

	out := make(chan api.RawMessage, 8)
	errCh := make(chan error, 1)
	go func() { errCh <- Stream(context.Background(), strings.NewReader(feed), out, nil) }()

	var got []api.RawMessage
	for raw := range out {
		got = append(got, raw)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not return after EOF")
	}

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2 (malformed and blank lines skipped)", len(got))
	}
	if got[0].Origin != "HDFCBK" || got[1].Origin != "AX-ICICI" {
		t.Errorf("unexpected messages: %+v", got)
	}
	if got[0].ReceivedAt != 1700000000000 {
		t.Errorf("receivedAt: got %d, want 1700000000000", got[0].ReceivedAt)
	}
}

func TestStream_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Unbuffered channel with no reader: the send blocks until cancel.
	out := make(chan api.RawMessage)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Stream(ctx, strings.NewReader(`{"origin":"X","text":"Rs. 1 at Y"}`+"\n"), out, nil)
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not honor cancellation")
	}
}
