package service

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
)

// GameStatsStore keeps daily per-game counters in memory. It is used when
// no Redis is configured and is fed directly from treasury events.
type GameStatsStore struct {
	mu    sync.RWMutex
	daily map[string]*model.DailyStats // Key: GameKey:YYYY-MM-DD
}

func NewGameStatsStore() *GameStatsStore {
	return &GameStatsStore{
		daily: make(map[string]*model.DailyStats),
	}
}

func (s *GameStatsStore) Publish(ev model.TreasuryEvent) {
	if ev.Bet == nil {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.entryLocked(ev.Bet.GameKey, at)
	switch ev.Type {
	case model.EventBetPlaced:
		st.Placed++
		st.Wagered += ev.Bet.Amount
	case model.EventBetSettled:
		st.Settled++
		st.Paid += ev.Bet.Payout
	}
}

func (s *GameStatsStore) DailyStats(ctx context.Context, gameKey string, day time.Time) (model.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date := day.UTC().Format("2006-01-02")
	if st, ok := s.daily[gameKey+":"+date]; ok {
		return *st, nil
	}
	return model.DailyStats{GameKey: gameKey, Date: date}, nil
}

func (s *GameStatsStore) entryLocked(gameKey string, at time.Time) *model.DailyStats {
	date := at.UTC().Format("2006-01-02")
	key := gameKey + ":" + date
	st, ok := s.daily[key]
	if !ok {
		st = &model.DailyStats{GameKey: gameKey, Date: date}
		s.daily[key] = st
	}
	return st
}
