package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled config must produce a nil dispatcher")
	}
	// nil receivers are safe.
	d.Emit(context.Background(), Event{Kind: "login_success"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
}

func TestCloseDrainsBuffer(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Kind: "login_failure", AccountID: "a1"})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 10 {
		t.Fatalf("expected 10 drained events, got %d", got)
	}
}

func TestEmitAfterCloseDropped(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)
	d.Close()

	d.Emit(context.Background(), Event{Kind: "logout"})
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("expected no delivery after Close, got %d", got)
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	block := make(chan struct{})
	slow := sinkFunc(func(context.Context, Event) { <-block })

	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, slow)

	// First event occupies the worker, second fills the buffer, the rest drop.
	for i := 0; i < 6; i++ {
		d.Emit(context.Background(), Event{Kind: "login_failure"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops once the buffer filled")
	}
	close(block)
	d.Close()
}

type sinkFunc func(context.Context, Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

func TestBlockingEmitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	slow := sinkFunc(func(context.Context, Event) { <-block })

	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, slow)
	defer func() {
		close(block)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Kind: "a"})
	d.Emit(context.Background(), Event{Kind: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{Kind: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit must return once the context expires")
	}
}

func TestJSONWriterSinkOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Kind:      "login_success",
		AccountID: "a1",
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Success:   true,
	})
	sink.Emit(context.Background(), Event{Kind: "logout", AccountID: "a1"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded Event
	if err := json.Unmarshal(lines[0], &decoded); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if decoded.Kind != "login_success" || !decoded.Success {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

func TestChannelSinkDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(4)

	sink.Emit(context.Background(), Event{Kind: "a"})
	sink.Emit(context.Background(), Event{Kind: "b"})

	if got := (<-sink.Events()).Kind; got != "a" {
		t.Fatalf("expected a first, got %s", got)
	}
	if got := (<-sink.Events()).Kind; got != "b" {
		t.Fatalf("expected b second, got %s", got)
	}
}
