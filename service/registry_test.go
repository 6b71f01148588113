package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/cosign/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := newWallet(t), newWallet(t)

	upperB := core.Address(strings.ToUpper(string(b.address[2:])))
	p, err := f.registry.Create(ctx, CreateProposal{
		Owner:             a.address,
		Participants:      []core.Address{a.address, "0x" + upperB, b.address, a.address},
		RequiredApprovals: 2,
		Payload:           []byte("transfer:100"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []core.Address{a.address, b.address}, p.Participants)
	assert.Equal(t, core.StatusPending, p.Status)
	assert.Empty(t, p.Approvals)
	assert.True(t, p.ExpiresAt.IsZero())
	assert.Equal(t, 1, f.pub.publishedWithStatus(core.StatusPending))

	got, err := f.registry.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Participants, got.Participants)
	assert.Equal(t, "transfer:100", string(got.Payload))
}

func TestRegistry_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := newWallet(t), newWallet(t)

	tests := []struct {
		name    string
		req     CreateProposal
		wantErr error
	}{
		{
			name:    "no participants",
			req:     CreateProposal{Owner: a.address, RequiredApprovals: 1, Payload: []byte("x")},
			wantErr: core.ErrInvalidProposal,
		},
		{
			name:    "empty payload",
			req:     CreateProposal{Owner: a.address, Participants: []core.Address{a.address}, RequiredApprovals: 1},
			wantErr: core.ErrInvalidProposal,
		},
		{
			name:    "zero required",
			req:     CreateProposal{Owner: a.address, Participants: []core.Address{a.address}, Payload: []byte("x")},
			wantErr: core.ErrInvalidQuorum,
		},
		{
			name: "required above participants after dedupe",
			req: CreateProposal{
				Owner:             a.address,
				Participants:      []core.Address{b.address, b.address},
				RequiredApprovals: 2,
				Payload:           []byte("x"),
			},
			wantErr: core.ErrInvalidQuorum,
		},
		{
			name:    "bad participant",
			req:     CreateProposal{Owner: a.address, Participants: []core.Address{"0x1234"}, RequiredApprovals: 1, Payload: []byte("x")},
			wantErr: core.ErrInvalidAddress,
		},
		{
			name:    "bad owner",
			req:     CreateProposal{Owner: "nobody", Participants: []core.Address{a.address}, RequiredApprovals: 1, Payload: []byte("x")},
			wantErr: core.ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_OwnerIsNotImplicitParticipant(t *testing.T) {
	f := newFixture(t)
	owner, b := newWallet(t), newWallet(t)

	p, err := f.registry.Create(context.Background(), CreateProposal{
		Owner:             owner.address,
		Participants:      []core.Address{b.address},
		RequiredApprovals: 1,
		Payload:           []byte("x"),
	})
	require.NoError(t, err)
	assert.False(t, p.IsParticipant(owner.address))
}

func TestRegistry_CanonicalBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := newWallet(t), newWallet(t)

	p, err := f.registry.Create(ctx, CreateProposal{
		Owner:             a.address,
		Participants:      []core.Address{a.address, b.address},
		RequiredApprovals: 1,
		Payload:           []byte("transfer:100"),
	})
	require.NoError(t, err)

	first, err := f.registry.CanonicalBytes(ctx, p.ID)
	require.NoError(t, err)
	second, err := f.registry.CanonicalBytes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	lines := strings.Split(string(first), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "cosign proposal approval", lines[0])
	assert.Equal(t, "id: "+p.ID, lines[1])
	assert.Equal(t, "owner: "+a.address.String(), lines[2])
	assert.Equal(t, "participants: "+a.address.String()+","+b.address.String(), lines[3])
	assert.Equal(t, "required: 1", lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "payload: 0x"))
	assert.Len(t, lines[5], len("payload: 0x")+64)

	_, err = f.registry.CanonicalBytes(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrProposalNotFound)

	_, err = f.coordinator.SubmitApproval(ctx, p.ID, a.address, a.sign(t, first))
	require.NoError(t, err)
	_, err = f.registry.CanonicalBytes(ctx, p.ID)
	assert.ErrorIs(t, err, core.ErrTerminalProposal)
}

func TestRegistry_CanonicalMessageCommitsToPayload(t *testing.T) {
	p := &core.Proposal{ID: "id", Owner: "0xaa", Participants: []core.Address{"0xbb"}, RequiredApprovals: 1, Payload: []byte("a")}
	q := p.Clone()
	q.Payload = []byte("b")
	assert.NotEqual(t, CanonicalMessage(p), CanonicalMessage(q))
}

func TestRegistry_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := newWallet(t), newWallet(t), newWallet(t)

	create := func(owner wallet, participants ...wallet) *core.Proposal {
		addrs := make([]core.Address, len(participants))
		for i, w := range participants {
			addrs[i] = w.address
		}
		p, err := f.registry.Create(ctx, CreateProposal{Owner: owner.address, Participants: addrs, RequiredApprovals: 1, Payload: []byte("x")})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		return p
	}

	p1 := create(a, a, b)
	p2 := create(b, b, c)
	p3 := create(a, c)

	owned, err := f.registry.List(ctx, core.ProposalFilter{Owner: a.address})
	require.NoError(t, err)
	assert.Equal(t, []string{p3.ID, p1.ID}, ids(owned))

	involving, err := f.registry.List(ctx, core.ProposalFilter{Participant: b.address})
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID, p1.ID}, ids(involving))
}

func TestRegistry_EffectiveExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := newWallet(t)

	p, err := f.registry.Create(ctx, CreateProposal{
		Owner:             a.address,
		Participants:      []core.Address{a.address},
		RequiredApprovals: 1,
		Payload:           []byte("x"),
		TTL:               time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(time.Minute), p.ExpiresAt)

	f.clock.Advance(time.Minute)
	got, err := f.registry.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusExpired, got.Status)

	_, err = f.registry.CanonicalBytes(ctx, p.ID)
	assert.ErrorIs(t, err, core.ErrTerminalProposal)
}

func ids(proposals []*core.Proposal) []string {
	out := make([]string, len(proposals))
	for i, p := range proposals {
		out[i] = p.ID
	}
	return out
}
