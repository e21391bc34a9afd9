package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/caseworks/authcore/invite"
	"github.com/caseworks/authcore/lockout"
	"github.com/caseworks/authcore/password"
	"github.com/caseworks/authcore/session"
	"github.com/caseworks/authcore/token"
)

// Builder assembles an Engine. Single-use.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	accounts  AccountStore
	auditSink AuditSink
	built     bool
}

// NewBuilder returns a Builder preloaded with DefaultConfig semantics minus
// the signing key, which the caller must supply via WithConfig.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig(nil)}
}

// WithConfig replaces the entire policy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing sessions, lockouts, and invites.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the host application's account persistence.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink sets the audit destination. Nil means events are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, wires every component, and starts the
// audit dispatcher.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(b.config.Token)
	if err != nil {
		return nil, err
	}
	lockouts, err := lockout.NewTracker(b.redis, b.config.Lockout)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore(b.redis, b.config.Session)
	if err != nil {
		return nil, err
	}
	invites, err := invite.NewStore(b.redis, b.config.InviteTTL)
	if err != nil {
		return nil, err
	}

	b.built = true
	return &Engine{
		config:   b.config,
		hasher:   hasher,
		tokens:   tokens,
		lockouts: lockouts,
		sessions: sessions,
		invites:  invites,
		accounts: b.accounts,
		audit:    newAuditDispatcher(b.auditSink, b.config.Audit.BufferSize),
		metrics:  NewMetrics(),
	}, nil
}
