package cosign

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/adapters/events"
	"github.com/layer-3/cosign/adapters/store"
	"github.com/layer-3/cosign/adapters/tokenizer"
	"github.com/layer-3/cosign/core"
	"github.com/layer-3/cosign/internal/eth"
	"github.com/layer-3/cosign/internal/logger"
	"github.com/layer-3/cosign/service"
	api "github.com/layer-3/cosign/transport/http"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	s := store.NewMemoryStore()
	pub := events.NewWatermillPublisher(pubSub)
	opts := service.Options{Log: logger.Discard()}

	challenges := service.NewChallengeManager(s, time.Minute, opts)
	sessions := service.NewSessionIssuer(tokenizer.NewJWTTokenizer(signKey), s, time.Hour, opts)
	registry := service.NewRegistry(s, pub, opts)

	router := api.SetupRouter(
		service.NewAuthService(challenges, sessions, s, pub, opts),
		registry,
		service.NewCoordinator(registry, pub, opts),
		nil,
		logger.Discard(),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_TwoOfTwoApproval(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	keyA, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyB, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyC, err := crypto.GenerateKey()
	require.NoError(t, err)
	addrA, addrB := eth.KeyAddress(keyA), eth.KeyAddress(keyB)

	alice := NewClient(srv.URL, srv.Client())
	bob := NewClient(srv.URL+"/", srv.Client())
	carol := NewClient(srv.URL, srv.Client())

	_, err = alice.Login(ctx, keyA)
	require.NoError(t, err)
	_, err = bob.Login(ctx, keyB)
	require.NoError(t, err)
	_, err = carol.Login(ctx, keyC)
	require.NoError(t, err)

	me, err := alice.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, addrA, me.Address)

	proposal, err := alice.CreateProposal(ctx, api.CreateProposalRequest{
		Owner:             addrA.String(),
		Participants:      []string{addrA.String(), addrB.String()},
		RequiredApprovals: 2,
		Payload:           "transfer:100",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, proposal.Status)

	_, err = carol.Approve(ctx, proposal.ID, keyC)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.Status)
	assert.ErrorIs(t, err, core.ErrNotParticipant)

	proposal, err = alice.Approve(ctx, proposal.ID, keyA)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, proposal.Status)

	proposal, err = bob.Approve(ctx, proposal.ID, keyB)
	require.NoError(t, err)
	assert.Equal(t, core.StatusApproved, proposal.Status)

	_, err = alice.Approve(ctx, proposal.ID, keyA)
	assert.ErrorIs(t, err, core.ErrTerminalProposal)

	list, err := bob.Proposals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.StatusApproved, list[0].Status)

	got, err := carol.Proposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Len(t, got.Approvals, 2)
}

func TestClient_Logout(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	client := NewClient(srv.URL, nil)
	_, err = client.Login(ctx, key)
	require.NoError(t, err)
	token := client.Token()

	require.NoError(t, client.Logout(ctx))
	assert.Empty(t, client.Token())

	client.token = token
	_, err = client.Me(ctx)
	assert.ErrorIs(t, err, core.ErrSessionInvalid)
}

func TestClient_Reject(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := eth.KeyAddress(key)

	client := NewClient(srv.URL, nil)
	_, err = client.Login(ctx, key)
	require.NoError(t, err)

	proposal, err := client.CreateProposal(ctx, api.CreateProposalRequest{
		Owner:             addr.String(),
		Participants:      []string{addr.String()},
		RequiredApprovals: 1,
		Payload:           "transfer:1",
	})
	require.NoError(t, err)

	rejected, err := client.Reject(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRejected, rejected.Status)

	_, err = client.Approve(ctx, proposal.ID, key)
	assert.ErrorIs(t, err, core.ErrTerminalProposal)
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 400, Code: "challenge_expired", Message: "Challenge expired"}
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
	assert.Contains(t, err.Error(), "challenge_expired")

	unknown := &APIError{Status: 500, Code: "internal"}
	assert.Nil(t, unknown.Unwrap())
}
