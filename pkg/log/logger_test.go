package log

import (
	"sync"
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "test-conn",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
	}
	logger.Log(event)

	event.Frame = &FrameEvent{Size: 5, Data: []byte("#OK\r\n")}
	logger.Log(event)

	event.Frame = nil
	event.Error = &ErrorEventData{Message: "test error"}
	logger.Log(event)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	if m.Len() != 2 {
		t.Fatalf("Len: got %d, want 2 (nil skipped)", m.Len())
	}

	m.Log(Event{ConnectionID: "x"})
	m.Log(Event{ConnectionID: "y"})

	for name, r := range map[string]*recordingLogger{"a": a, "b": b} {
		if len(r.events) != 2 {
			t.Errorf("%s: got %d events, want 2", name, len(r.events))
		}
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	NewMultiLogger().Log(Event{})
}
