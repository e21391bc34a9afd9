package authcore

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// collectSink records events in memory for assertions.
type collectSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *collectSink) Emit(event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) all() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &collectSink{}
	d := newAuditDispatcher(sink, 16)

	for i := 0; i < 5; i++ {
		d.Dispatch(AuditEvent{Type: AuditLoginSuccess, AccountID: "acct"})
	}
	d.Close()

	if got := len(sink.all()); got != 5 {
		t.Errorf("delivered = %d, want 5", got)
	}
	if d.Dropped() != 0 {
		t.Errorf("dropped = %d", d.Dropped())
	}
}

func TestDispatcherStampsTime(t *testing.T) {
	sink := &collectSink{}
	d := newAuditDispatcher(sink, 4)

	d.Dispatch(AuditEvent{Type: AuditLogout})
	d.Close()

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("delivered = %d", len(events))
	}
	if events[0].At.IsZero() {
		t.Error("event timestamp not stamped")
	}
}

func TestDispatcherDropsOnOverflow(t *testing.T) {
	// A sink that blocks until released, so the queue fills up.
	release := make(chan struct{})
	blocking := &blockingSink{release: release}
	d := newAuditDispatcher(blocking, 2)

	for i := 0; i < 20; i++ {
		d.Dispatch(AuditEvent{Type: AuditLoginFailure})
	}
	close(release)
	d.Close()

	if d.Dropped() == 0 {
		t.Error("expected drops with a full queue, got none")
	}
}

type blockingSink struct {
	release <-chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(AuditEvent) {
	s.once.Do(func() { <-s.release })
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterAuditSink(&buf)

	sink.Emit(AuditEvent{
		Type:      AuditSecretChanged,
		AccountID: "acct-1",
		At:        time.Now(),
		Metadata:  map[string]string{"sessions_revoked": "2"},
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not one JSON object per line: %v", err)
	}
	if decoded.Type != AuditSecretChanged || decoded.AccountID != "acct-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelAuditSink(1)
	sink.Emit(AuditEvent{Type: AuditLogout})
	sink.Emit(AuditEvent{Type: AuditLogout}) // must not block

	if len(sink.C) != 1 {
		t.Errorf("buffered = %d, want 1", len(sink.C))
	}
}
