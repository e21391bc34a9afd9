package authcore

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEventType identifies what happened.
type AuditEventType string

const (
	AuditLoginSuccess      AuditEventType = "login.success"
	AuditLoginFailure      AuditEventType = "login.failure"
	AuditLoginLocked       AuditEventType = "login.locked"
	AuditLockoutTriggered  AuditEventType = "lockout.triggered"
	AuditRefreshSuccess    AuditEventType = "refresh.success"
	AuditRefreshReuse      AuditEventType = "refresh.reuse"
	AuditLogout            AuditEventType = "logout"
	AuditLogoutAll         AuditEventType = "logout.all"
	AuditSessionEvicted    AuditEventType = "session.evicted"
	AuditSessionRevoked    AuditEventType = "session.revoked"
	AuditSecretChanged     AuditEventType = "secret.changed"
	AuditAccountRegistered AuditEventType = "account.registered"
	AuditAccountStatusSet  AuditEventType = "account.status"
	AuditAccountUnlocked   AuditEventType = "account.unlocked"
	AuditInviteIssued      AuditEventType = "invite.issued"
	AuditInviteRevoked     AuditEventType = "invite.revoked"
	AuditPermissionDenied  AuditEventType = "authz.denied"
)

// AuditEvent is one security-relevant occurrence. Events never contain
// secrets, token strings, or hashes.
type AuditEvent struct {
	Type      AuditEventType    `json:"type"`
	AccountID string            `json:"account_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	At        time.Time         `json:"at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine. Emit must
// not panic; slow sinks delay only the dispatcher, never engine operations.
type AuditSink interface {
	Emit(event AuditEvent)
}

// NoopAuditSink discards everything. The default when no sink is configured.
type NoopAuditSink struct{}

func (NoopAuditSink) Emit(AuditEvent) {}

// ChannelAuditSink forwards events to a channel, dropping when full.
type ChannelAuditSink struct {
	C chan AuditEvent
}

// NewChannelAuditSink returns a sink buffered to size.
func NewChannelAuditSink(size int) *ChannelAuditSink {
	return &ChannelAuditSink{C: make(chan AuditEvent, size)}
}

func (s *ChannelAuditSink) Emit(event AuditEvent) {
	select {
	case s.C <- event:
	default:
	}
}

// JSONWriterAuditSink writes one JSON object per line. Writes are
// serialized; the writer does not need to be concurrency-safe.
type JSONWriterAuditSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONWriterAuditSink wraps w.
func NewJSONWriterAuditSink(w io.Writer) *JSONWriterAuditSink {
	return &JSONWriterAuditSink{w: w}
}

func (s *JSONWriterAuditSink) Emit(event AuditEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	raw = append(raw, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Write(raw)
}
