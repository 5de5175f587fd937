package service

import (
	"context"
	"testing"

	"github.com/GoPolymarket/housevault/internal/config"
	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/signer"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	tr, err := treasury.New(testAdmin, treasury.DefaultConfig())
	require.NoError(t, err)
	gm := NewGameManager(nil)
	svc := NewGameService(tr, gm, 137)

	games := []config.GameConfig{{
		Identity:  testModule.Hex(),
		Name:      "dice",
		Version:   "2",
		MinBet:    10,
		MaxBet:    1_000,
		MaxPayout: 10_000,
		RateLimit: config.RateLimitConfig{QPS: 5, Burst: 7},
	}}
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx, games))
	require.NoError(t, svc.Bootstrap(ctx, games))

	list := svc.List()
	require.Len(t, list, 1)
	key := treasury.DeriveGameKey(testAdmin, "dice", "2")
	assert.Equal(t, key, list[0].Key)
	assert.Equal(t, 7, gm.LimiterFor(key).Burst())

	bad := []config.GameConfig{{Identity: "dice-module", Name: "x", Version: "1"}}
	err = svc.Bootstrap(ctx, bad)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestRequestLimitUpdateCannotTouchMaxPayout(t *testing.T) {
	tr, err := treasury.New(testAdmin, treasury.DefaultConfig())
	require.NoError(t, err)
	gm := NewGameManager(nil)
	svc := NewGameService(tr, gm, 137)

	cap := claimedGame(t, tr, "dice")
	token, err := gm.Bind(context.Background(), cap)
	require.NoError(t, err)
	session, _ := gm.Resolve(token)

	maxPayout := uint64(1)
	_, err = svc.RequestLimitUpdate(context.Background(), session, model.LimitsRequest{MinBet: 2, MaxBet: 50, MaxPayout: &maxPayout})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))

	rec, err := svc.RequestLimitUpdate(context.Background(), session, model.LimitsRequest{MinBet: 2, MaxBet: 50})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.MinBet)
	assert.Equal(t, uint64(50), rec.MaxBet)

	status, err := svc.Status(cap.GameKey())
	require.NoError(t, err)
	assert.Equal(t, cap.GameKey(), status.Partition.ID)
}

type stubWallets struct {
	accept map[common.Address]string
	calls  int
}

func (w *stubWallets) VerifyClaim(_ context.Context, _ signer.Domain, _ string, wallet common.Address, sig string) (bool, error) {
	w.calls++
	return w.accept[wallet] == sig, nil
}

func TestClaimFallsBackToContractWallet(t *testing.T) {
	tr, err := treasury.New(testAdmin, treasury.DefaultConfig())
	require.NoError(t, err)
	gm := NewGameManager(nil)
	svc := NewGameService(tr, gm, 137)

	ctx := context.Background()
	rec, err := svc.Register(ctx, model.RegisterGameRequest{
		Identity:  testModule.Hex(),
		Name:      "roulette",
		Version:   "1",
		MinBet:    1,
		MaxBet:    100,
		MaxPayout: 3_600,
	})
	require.NoError(t, err)

	_, err = svc.Claim(ctx, rec.Key, model.ClaimRequest{Identity: testModule.Hex(), Signature: "0x01"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrAuthFailed), "no wallet verifier")

	wallets := &stubWallets{accept: map[common.Address]string{testModule: "0x01"}}
	svc.UseContractVerifier(wallets)

	_, err = svc.Claim(ctx, rec.Key, model.ClaimRequest{Identity: testModule.Hex(), Signature: "0x02"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrAuthFailed))

	resp, err := svc.Claim(ctx, rec.Key, model.ClaimRequest{Identity: testModule.Hex(), Signature: "0x01"})
	require.NoError(t, err)
	assert.Equal(t, rec.Key, resp.GameKey)
	assert.Equal(t, 2, wallets.calls)

	session, ok := gm.Resolve(resp.Token)
	require.True(t, ok)
	assert.Equal(t, testModule, session.Capability.Identity())
}
