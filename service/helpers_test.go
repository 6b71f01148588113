package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/cosign/adapters/store"
	"github.com/layer-3/cosign/adapters/tokenizer"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/eth"
	"github.com/layer-3/cosign/internal/logger"
	"github.com/layer-3/cosign/internal/retry"
	"github.com/layer-3/cosign/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishLogout(ctx context.Context, address core.Address, sessionID string) error {
	args := m.Called(ctx, address, sessionID)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishProposal(ctx context.Context, proposal *core.Proposal) error {
	args := m.Called(ctx, proposal)
	return args.Error(0)
}

func newMockPublisher() *MockEventPublisher {
	pub := new(MockEventPublisher)
	pub.On("PublishLogout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishProposal", mock.Anything, mock.Anything).Return(nil)
	return pub
}

// publishedWithStatus counts PublishProposal calls carrying status.
func (m *MockEventPublisher) publishedWithStatus(status core.Status) int {
	n := 0
	for _, call := range m.Calls {
		if call.Method != "PublishProposal" {
			continue
		}
		if p, ok := call.Arguments.Get(1).(*core.Proposal); ok && p.Status == status {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fullStore interface {
	ports.ChallengeStore
	ports.ProposalStore
	ports.RevocationStore
	ports.UserStore
}

type fixture struct {
	store       fullStore
	pub         *MockEventPublisher
	clock       *fakeClock
	challenges  *ChallengeManager
	sessions    *SessionIssuer
	auth        *AuthService
	registry    *Registry
	coordinator *Coordinator
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, store.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, s fullStore) *fixture {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clock := newFakeClock()
	pub := newMockPublisher()
	opts := Options{
		Log: logger.Discard(),
		Policy: retry.Policy{
			Timeout:     5 * time.Second,
			MaxRetries:  1,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
		Now: clock.Now,
	}

	challenges := NewChallengeManager(s, 5*time.Minute, opts)
	sessions := NewSessionIssuer(tokenizer.NewJWTTokenizer(signKey), s, 15*time.Minute, opts)
	registry := NewRegistry(s, pub, opts)

	return &fixture{
		store:       s,
		pub:         pub,
		clock:       clock,
		challenges:  challenges,
		sessions:    sessions,
		auth:        NewAuthService(challenges, sessions, s, pub, opts),
		registry:    registry,
		coordinator: NewCoordinator(registry, pub, opts),
	}
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address core.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: eth.KeyAddress(key)}
}

func (w wallet) sign(t *testing.T, message []byte) []byte {
	t.Helper()
	sig, err := eth.SignText(w.key, message)
	require.NoError(t, err)
	return sig
}
