package service

import (
	"context"
	"strings"

	"github.com/GoPolymarket/housevault/internal/config"
	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/GoPolymarket/housevault/internal/signer"
	"github.com/GoPolymarket/housevault/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
)

// GameService runs the registry operations on behalf of the HTTP layer. Admin
// routes act as the configured admin address.
type GameService struct {
	treasury  *treasury.Treasury
	manager   *GameManager
	domain    signer.Domain
	contracts ContractVerifier
}

// ContractVerifier checks claims whose identity is a contract wallet.
type ContractVerifier interface {
	VerifyClaim(ctx context.Context, d signer.Domain, gameKey string, wallet common.Address, sigHex string) (bool, error)
}

func NewGameService(t *treasury.Treasury, manager *GameManager, chainID int64) *GameService {
	return &GameService{
		treasury: t,
		manager:  manager,
		domain:   signer.Domain{ChainID: chainID, VerifyingContract: t.Admin()},
	}
}

// UseContractVerifier lets contract wallets claim capabilities when the
// signature does not recover to the identity.
func (s *GameService) UseContractVerifier(v ContractVerifier) {
	s.contracts = v
}

func (s *GameService) Domain() signer.Domain {
	return s.domain
}

func (s *GameService) Register(ctx context.Context, req model.RegisterGameRequest) (*model.GameRecord, error) {
	identity, err := parseAddress("identity", req.Identity)
	if err != nil {
		return nil, err
	}
	rec, err := s.treasury.RegisterGame(s.treasury.Admin(), treasury.RegisterParams{
		Identity:     identity,
		Name:         strings.TrimSpace(req.Name),
		Version:      strings.TrimSpace(req.Version),
		MinBet:       req.MinBet,
		MaxBet:       req.MaxBet,
		HouseEdgeBps: req.HouseEdgeBps,
		MaxPayout:    req.MaxPayout,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	logger.ForGame(rec.Key).InfoContext(ctx, "game registered via api", "identity", identity.Hex())
	return rec, nil
}

// Bootstrap registers the games listed in the configuration. Games that are
// already present, e.g. after a restore, are left alone.
func (s *GameService) Bootstrap(ctx context.Context, games []config.GameConfig) error {
	for _, g := range games {
		identity, err := parseAddress("identity", g.Identity)
		if err != nil {
			return err
		}
		key := treasury.DeriveGameKey(s.treasury.Admin(), g.Name, g.Version)
		if g.RateLimit.QPS > 0 {
			s.manager.SetRate(key, g.RateLimit)
		}
		if _, err := s.treasury.Game(key); err == nil {
			continue
		}
		_, err = s.treasury.RegisterGame(s.treasury.Admin(), treasury.RegisterParams{
			Identity:     identity,
			Name:         g.Name,
			Version:      g.Version,
			MinBet:       g.MinBet,
			MaxBet:       g.MaxBet,
			HouseEdgeBps: g.HouseEdgeBps,
			MaxPayout:    g.MaxPayout,
			Metadata:     g.Metadata,
		})
		if err != nil {
			return err
		}
		logger.ForGame(key).InfoContext(ctx, "game registered from config", "name", g.Name, "version", g.Version)
	}
	return nil
}

// Claim hands the capability of gameKey to the module that signed the claim
// and returns the token it must present from then on.
func (s *GameService) Claim(ctx context.Context, gameKey string, req model.ClaimRequest) (model.ClaimResponse, error) {
	identity, err := parseAddress("identity", req.Identity)
	if err != nil {
		return model.ClaimResponse{}, err
	}
	if err := s.verifyClaim(ctx, gameKey, identity, req.Signature); err != nil {
		return model.ClaimResponse{}, err
	}
	cap, err := s.treasury.ClaimCapability(identity, gameKey)
	if err != nil {
		return model.ClaimResponse{}, err
	}
	token, err := s.manager.Bind(ctx, cap)
	if err != nil {
		// The capability is claimed either way; the operator has to restart
		// with a working session store to hand out a token.
		return model.ClaimResponse{}, apperrors.New(apperrors.ErrInternal, "failed to store game session", err)
	}
	return model.ClaimResponse{GameKey: gameKey, Token: token}, nil
}

func (s *GameService) verifyClaim(ctx context.Context, gameKey string, identity common.Address, sig string) error {
	err := signer.VerifyClaim(s.domain, gameKey, identity, sig)
	if err == nil {
		return nil
	}
	if s.contracts == nil {
		return apperrors.New(apperrors.ErrAuthFailed, "invalid claim signature", err)
	}
	ok, cerr := s.contracts.VerifyClaim(ctx, s.domain, gameKey, identity, sig)
	if cerr != nil {
		logger.ForGame(gameKey).WarnContext(ctx, "eip1271 claim check failed", "identity", identity.Hex(), "error", cerr)
		return apperrors.New(apperrors.ErrAuthFailed, "invalid claim signature", cerr)
	}
	if !ok {
		return apperrors.New(apperrors.ErrAuthFailed, "invalid claim signature", err)
	}
	return nil
}

func (s *GameService) Unregister(ctx context.Context, gameKey string) error {
	if err := s.treasury.UnregisterGame(s.treasury.Admin(), gameKey); err != nil {
		return err
	}
	// The session stays so open bets can still be settled; it is revoked on sweep.
	return nil
}

func (s *GameService) UpdateLimits(ctx context.Context, gameKey string, req model.LimitsRequest) (*model.GameRecord, error) {
	if err := s.treasury.UpdateLimits(s.treasury.Admin(), gameKey, req.MinBet, req.MaxBet, req.MaxPayout); err != nil {
		return nil, err
	}
	return s.treasury.Game(gameKey)
}

// RequestLimitUpdate is the game's own, risk-reducing limit change.
func (s *GameService) RequestLimitUpdate(ctx context.Context, session *GameSession, req model.LimitsRequest) (*model.GameRecord, error) {
	if req.MaxPayout != nil {
		return nil, apperrors.NewInvalidRequest("max_payout can only be changed by the admin")
	}
	if err := s.treasury.RequestLimitUpdate(session.Capability, req.MinBet, req.MaxBet); err != nil {
		return nil, err
	}
	return s.treasury.Game(session.GameKey)
}

func (s *GameService) Sweep(ctx context.Context, gameKey string) (uint64, error) {
	amount, err := s.treasury.SweepToCentral(s.treasury.Admin(), gameKey)
	if err != nil {
		return 0, err
	}
	s.manager.Revoke(ctx, gameKey)
	return amount, nil
}

func (s *GameService) List() []*model.GameRecord {
	return s.treasury.Games()
}

func (s *GameService) Status(gameKey string) (model.GameStatus, error) {
	rec, err := s.treasury.Game(gameKey)
	if err != nil {
		return model.GameStatus{}, err
	}
	part, err := s.treasury.GameTreasuryBalance(gameKey)
	if err != nil {
		return model.GameStatus{}, err
	}
	return model.GameStatus{Game: rec, Partition: part}, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperrors.Newf(apperrors.ErrInvalidRequest, "%s must be a hex address", field)
	}
	return common.HexToAddress(raw), nil
}
