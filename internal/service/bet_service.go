package service

import (
	"context"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/treasury"
)

type BetHistory interface {
	ListBets(ctx context.Context, gameKey string, limit, offset int) ([]*model.Bet, error)
}

type StatsReader interface {
	DailyStats(ctx context.Context, gameKey string, day time.Time) (model.DailyStats, error)
}

// BetService is the game-facing side of the treasury. Every call carries the
// session resolved from the caller's token.
type BetService struct {
	treasury *treasury.Treasury
	history  BetHistory
	stats    StatsReader
}

func NewBetService(t *treasury.Treasury, history BetHistory, stats StatsReader) *BetService {
	return &BetService{treasury: t, history: history, stats: stats}
}

func (s *BetService) Place(ctx context.Context, session *GameSession, req model.PlaceBetRequest) (model.PlaceBetResponse, error) {
	player, err := parseAddress("player", req.Player)
	if err != nil {
		return model.PlaceBetResponse{}, err
	}
	placement, err := s.treasury.PlaceBet(session.Capability, player, req.Amount, req.ExpectedMaxPayout)
	if err != nil {
		return model.PlaceBetResponse{}, err
	}
	return model.PlaceBetResponse{BetID: placement.BetID, Source: placement.Source}, nil
}

func (s *BetService) Settle(ctx context.Context, session *GameSession, betID uint64, req model.SettleBetRequest) (model.SettleBetResponse, error) {
	player, err := parseAddress("player", req.Player)
	if err != nil {
		return model.SettleBetResponse{}, err
	}
	res, err := s.treasury.SettleBet(session.Capability, betID, player, req.Payout, req.Source)
	if err != nil {
		return model.SettleBetResponse{}, err
	}
	return model.SettleBetResponse{
		BetID:       res.BetID,
		Payout:      res.Payout,
		HouseResult: res.HouseResult,
		Rebalance:   string(res.Rebalance.Direction),
		Moved:       res.Rebalance.Amount,
	}, nil
}

func (s *BetService) OpenBets(session *GameSession) ([]*model.Bet, error) {
	return s.treasury.OpenBets(session.Capability)
}

func (s *BetService) Bet(session *GameSession, betID uint64) (*model.Bet, error) {
	return s.treasury.Bet(session.Capability, betID)
}

// History pages through settled and open bets from the journal. Without a
// journal only open bets are known.
func (s *BetService) History(ctx context.Context, session *GameSession, limit, offset int) ([]*model.Bet, error) {
	if s.history == nil {
		return s.treasury.OpenBets(session.Capability)
	}
	return s.history.ListBets(ctx, session.GameKey, limit, offset)
}

func (s *BetService) DailyStats(ctx context.Context, gameKey string, day time.Time) (model.DailyStats, error) {
	if s.stats == nil {
		return model.DailyStats{}, apperrors.New(apperrors.ErrNotFound, "stats are not enabled", nil)
	}
	if _, err := s.treasury.Game(gameKey); err != nil {
		return model.DailyStats{}, err
	}
	return s.stats.DailyStats(ctx, gameKey, day)
}
