package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/caseworks/authcore/lockout"
	"github.com/caseworks/authcore/password"
	"github.com/caseworks/authcore/rbac"
	"github.com/caseworks/authcore/session"
	"github.com/caseworks/authcore/token"
)

// mockAccountStore is an in-memory AccountStore with call counters, so
// tests can assert which persistence paths an operation takes.
type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	emails   map[string]string

	getByEmailCalls   int
	getByIDCalls      int
	createCalls       int
	updateSecretCalls int
	updateStatusCalls int
	bumpVersionCalls  int

	failNext error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts: make(map[string]Account),
		emails:   make(map[string]string),
	}
}

func (m *mockAccountStore) add(account Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	m.emails[account.Email] = account.ID
}

func (m *mockAccountStore) get(id string) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func (m *mockAccountStore) takeErr() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++
	if err := m.takeErr(); err != nil {
		return Account{}, err
	}
	id, ok := m.emails[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *mockAccountStore) GetByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++
	if err := m.takeErr(); err != nil {
		return Account{}, err
	}
	account, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (m *mockAccountStore) Create(_ context.Context, account Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if err := m.takeErr(); err != nil {
		return err
	}
	if _, exists := m.emails[account.Email]; exists {
		return ErrAccountExists
	}
	m.accounts[account.ID] = account
	m.emails[account.Email] = account.ID
	return nil
}

func (m *mockAccountStore) UpdateSecret(_ context.Context, id, newHash string, history []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateSecretCalls++
	if err := m.takeErr(); err != nil {
		return err
	}
	account, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.SecretHash = newHash
	account.SecretHistory = history
	m.accounts[id] = account
	return nil
}

func (m *mockAccountStore) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStatusCalls++
	if err := m.takeErr(); err != nil {
		return err
	}
	account, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.Status = status
	m.accounts[id] = account
	return nil
}

func (m *mockAccountStore) BumpTokenVersion(_ context.Context, id string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumpVersionCalls++
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	account, ok := m.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	account.TokenVersion++
	m.accounts[id] = account
	return account.TokenVersion, nil
}

func testConfig() Config {
	return Config{
		Token: token.Config{
			SigningMethod: token.MethodHS256,
			SigningKey:    []byte("0123456789abcdef0123456789abcdef"),
			AccessTTL:     time.Minute,
			RefreshTTL:    30 * time.Minute,
			Issuer:        "caseworks-test",
		},
		Password: password.Params{
			Memory:      8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   16,
		},
		Lockout: lockout.Config{
			Threshold:       3,
			LockDuration:    time.Minute,
			MaxLockDuration: time.Hour,
			FailureWindow:   time.Minute,
			CycleMemory:     time.Hour,
		},
		Session: session.Config{
			TTL:           time.Hour,
			MaxPerAccount: 5,
		},
		InviteTTL:          time.Hour,
		MinSecretLength:    10,
		SecretHistoryLimit: 3,
		RehashOnLogin:      false,
		Audit:              AuditConfig{BufferSize: 64},
	}
}

type testEnv struct {
	engine *Engine
	store  *mockAccountStore
	redis  *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	store := newMockAccountStore()
	engine, err := NewBuilder().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(store).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, redis: mr}
}

// seedAccount hashes secret and registers an active account directly in the
// mock store.
func (env *testEnv) seedAccount(t *testing.T, id, email, secret string, role rbac.Role) Account {
	t.Helper()
	hash, err := env.engine.hasher.Hash(secret)
	if err != nil {
		t.Fatal(err)
	}
	account := Account{
		ID:         id,
		Email:      email,
		Role:       role,
		SecretHash: hash,
		Status:     StatusActive,
		CreatedAt:  time.Now(),
	}
	env.store.add(account)
	return account
}
