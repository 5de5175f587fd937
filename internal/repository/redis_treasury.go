package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/redis/go-redis/v9"
)

const statsTTL = 8 * 24 * time.Hour

// RedisTreasuryCache mirrors partition balances, open bets and daily game
// stats so readers outside the process can see them without the database.
type RedisTreasuryCache struct {
	client *RedisClient
}

func NewRedisTreasuryCache(client *RedisClient) *RedisTreasuryCache {
	return &RedisTreasuryCache{client: client}
}

func (r *RedisTreasuryCache) Apply(ctx context.Context, ev model.TreasuryEvent) error {
	pipe := r.client.Client.Pipeline()

	if len(ev.Partitions) > 0 {
		fields := make(map[string]interface{}, len(ev.Partitions))
		for _, p := range ev.Partitions {
			fields[p.ID] = strconv.FormatUint(p.Balance, 10)
		}
		pipe.HSet(ctx, r.client.key("partitions"), fields)
	}

	if ev.Bet != nil {
		betsKey := r.client.key("bets", ev.Bet.GameKey)
		field := strconv.FormatUint(ev.Bet.ID, 10)
		day := ev.At.UTC().Format("2006-01-02")
		if ev.At.IsZero() {
			day = time.Now().UTC().Format("2006-01-02")
		}
		statsKey := r.client.key("stats", ev.Bet.GameKey, day)

		switch ev.Type {
		case model.EventBetPlaced:
			payload, err := json.Marshal(ev.Bet)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, betsKey, field, payload)
			pipe.HIncrBy(ctx, statsKey, "placed", 1)
			pipe.HIncrBy(ctx, statsKey, "wagered", clampInt64(ev.Bet.Amount))
		case model.EventBetSettled:
			pipe.HDel(ctx, betsKey, field)
			pipe.HIncrBy(ctx, statsKey, "settled", 1)
			pipe.HIncrBy(ctx, statsKey, "paid", clampInt64(ev.Bet.Payout))
		}
		pipe.Expire(ctx, statsKey, statsTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Balances returns the last mirrored balance of every partition.
func (r *RedisTreasuryCache) Balances(ctx context.Context) (map[string]uint64, error) {
	raw, err := r.client.Client.HGetAll(ctx, r.client.key("partitions")).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(raw))
	for id, v := range raw {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		out[id] = n
	}
	return out, nil
}

func (r *RedisTreasuryCache) OpenBets(ctx context.Context, gameKey string) ([]*model.Bet, error) {
	raw, err := r.client.Client.HVals(ctx, r.client.key("bets", gameKey)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Bet, 0, len(raw))
	for _, v := range raw {
		var b model.Bet
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			continue
		}
		out = append(out, &b)
	}
	return out, nil
}

// Reset replaces the mirrored balances and open bets with state. Daily stats
// and sessions are left alone.
func (r *RedisTreasuryCache) Reset(ctx context.Context, state model.TreasuryState) error {
	pipe := r.client.Client.TxPipeline()

	partsKey := r.client.key("partitions")
	pipe.Del(ctx, partsKey)
	if len(state.Partitions) > 0 {
		fields := make(map[string]interface{}, len(state.Partitions))
		for _, p := range state.Partitions {
			fields[p.ID] = strconv.FormatUint(p.Balance, 10)
		}
		pipe.HSet(ctx, partsKey, fields)
	}

	for _, g := range state.Games {
		pipe.Del(ctx, r.client.key("bets", g.Key))
	}
	for _, b := range state.OpenBets {
		payload, err := json.Marshal(b)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.client.key("bets", b.GameKey), strconv.FormatUint(b.ID, 10), payload)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisTreasuryCache) DailyStats(ctx context.Context, gameKey string, day time.Time) (model.DailyStats, error) {
	date := day.UTC().Format("2006-01-02")
	stats := model.DailyStats{GameKey: gameKey, Date: date}

	raw, err := r.client.Client.HGetAll(ctx, r.client.key("stats", gameKey, date)).Result()
	if errors.Is(err, redis.Nil) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}
	stats.Placed, _ = strconv.ParseInt(raw["placed"], 10, 64)
	stats.Settled, _ = strconv.ParseInt(raw["settled"], 10, 64)
	stats.Wagered, _ = strconv.ParseUint(raw["wagered"], 10, 64)
	stats.Paid, _ = strconv.ParseUint(raw["paid"], 10, 64)
	return stats, nil
}

// SaveSession records which game a capability token belongs to.
func (r *RedisTreasuryCache) SaveSession(ctx context.Context, token, gameKey string) error {
	return r.client.Client.HSet(ctx, r.client.key("sessions"), token, gameKey).Err()
}

func (r *RedisTreasuryCache) DeleteSession(ctx context.Context, token string) error {
	return r.client.Client.HDel(ctx, r.client.key("sessions"), token).Err()
}

// Sessions returns token -> game key for every saved session.
func (r *RedisTreasuryCache) Sessions(ctx context.Context) (map[string]string, error) {
	return r.client.Client.HGetAll(ctx, r.client.key("sessions")).Result()
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
