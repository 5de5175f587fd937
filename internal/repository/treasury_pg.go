package repository

import (
	"context"
	"encoding/json"
	"math"
	"math/big"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Amounts are uint64 in the treasury; numeric(20,0) holds the full range.

type gameRow struct {
	Key               string          `gorm:"primaryKey;type:varchar(66)"`
	Identity          string          `gorm:"type:varchar(42);not null;index:idx_games_identity"`
	Registrant        string          `gorm:"type:varchar(42);not null"`
	Name              string          `gorm:"type:varchar(128);not null"`
	Version           string          `gorm:"type:varchar(64);not null"`
	MinBet            decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	MaxBet            decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	HouseEdgeBps      int64           `gorm:"not null;default:0"`
	MaxPayout         decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	Metadata          string          `gorm:"type:jsonb;not null;default:'{}'"`
	CapabilityClaimed bool            `gorm:"not null;default:false"`
	Active            bool            `gorm:"not null;default:true;index:idx_games_active"`
	RegisteredAt      time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

func (gameRow) TableName() string {
	return "treasury_games"
}

type partitionRow struct {
	ID            string          `gorm:"primaryKey;type:varchar(66)"`
	Balance       decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	RollingVolume decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0"`
	TargetReserve decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (partitionRow) TableName() string {
	return "treasury_partitions"
}

type betRow struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement:false"`
	GameKey           string          `gorm:"type:varchar(66);not null;index:idx_bets_game_settled,priority:1"`
	Player            string          `gorm:"type:varchar(42);not null;index:idx_bets_player"`
	Amount            decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	ExpectedMaxPayout decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	Source            string          `gorm:"type:varchar(66);not null"`
	Settled           bool            `gorm:"not null;default:false;index:idx_bets_game_settled,priority:2"`
	Payout            decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0"`
	PlacedAt          time.Time       `gorm:"not null"`
	SettledAt         *time.Time
}

func (betRow) TableName() string {
	return "treasury_bets"
}

// PostgresTreasuryRepo is the durable journal of the treasury: registry,
// partition balances and every bet ever placed.
type PostgresTreasuryRepo struct {
	db *gorm.DB
}

func NewPostgresTreasuryRepo(db *gorm.DB) (*PostgresTreasuryRepo, error) {
	if err := db.AutoMigrate(&gameRow{}, &partitionRow{}, &betRow{}); err != nil {
		return nil, err
	}
	return &PostgresTreasuryRepo{db: db}, nil
}

// Apply writes everything one treasury event touched in a single transaction.
func (r *PostgresTreasuryRepo) Apply(ctx context.Context, ev model.TreasuryEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ev.Game != nil {
			row := toGameRow(ev.Game)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				UpdateAll: true,
			}).Create(&row).Error; err != nil {
				return err
			}
		}
		if len(ev.Partitions) > 0 {
			rows := make([]partitionRow, 0, len(ev.Partitions))
			for _, p := range ev.Partitions {
				rows = append(rows, toPartitionRow(p, ev.At))
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&rows).Error; err != nil {
				return err
			}
		}
		if ev.Bet != nil {
			row := toBetRow(ev.Bet)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"settled", "payout", "settled_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads back the state needed to restore the treasury, including every
// settled bet.
func (r *PostgresTreasuryRepo) Load(ctx context.Context) (model.TreasuryState, error) {
	var state model.TreasuryState
	db := r.db.WithContext(ctx)

	var games []gameRow
	if err := db.Order("key").Find(&games).Error; err != nil {
		return state, err
	}
	for i := range games {
		state.Games = append(state.Games, fromGameRow(&games[i]))
	}

	var parts []partitionRow
	if err := db.Find(&parts).Error; err != nil {
		return state, err
	}
	for _, p := range parts {
		state.Partitions = append(state.Partitions, model.PartitionSnapshot{
			ID:            p.ID,
			Balance:       fromNumeric(p.Balance),
			RollingVolume: fromNumeric(p.RollingVolume),
			TargetReserve: fromNumeric(p.TargetReserve),
		})
	}

	// Settled bets come back too so a replayed settlement is refused as such.
	var bets []betRow
	err := db.FindInBatches(&bets, 1000, func(tx *gorm.DB, batch int) error {
		for i := range bets {
			b := fromBetRow(&bets[i])
			if b.Settled {
				state.SettledBets = append(state.SettledBets, b)
			} else {
				state.OpenBets = append(state.OpenBets, b)
			}
			state.LastBetID = max(state.LastBetID, b.ID)
		}
		return nil
	}).Error
	if err != nil {
		return state, err
	}
	return state, nil
}

// ListBets pages through a game's bets, newest first.
func (r *PostgresTreasuryRepo) ListBets(ctx context.Context, gameKey string, limit, offset int) ([]*model.Bet, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var rows []betRow
	err := r.db.WithContext(ctx).
		Where("game_key = ?", gameKey).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Bet, 0, len(rows))
	for i := range rows {
		out = append(out, fromBetRow(&rows[i]))
	}
	return out, nil
}

func toGameRow(g *model.GameRecord) gameRow {
	meta := []byte("{}")
	if len(g.Metadata) > 0 {
		if b, err := json.Marshal(g.Metadata); err == nil {
			meta = b
		}
	}
	return gameRow{
		Key:               g.Key,
		Identity:          g.Identity.Hex(),
		Registrant:        g.Registrant.Hex(),
		Name:              g.Name,
		Version:           g.Version,
		MinBet:            toNumeric(g.MinBet),
		MaxBet:            toNumeric(g.MaxBet),
		HouseEdgeBps:      int64(g.HouseEdgeBps),
		MaxPayout:         toNumeric(g.MaxPayout),
		Metadata:          string(meta),
		CapabilityClaimed: g.CapabilityClaimed,
		Active:            g.Active,
		RegisteredAt:      g.RegisteredAt,
		UpdatedAt:         g.UpdatedAt,
	}
}

func fromGameRow(r *gameRow) *model.GameRecord {
	g := &model.GameRecord{
		Key:               r.Key,
		Identity:          common.HexToAddress(r.Identity),
		Registrant:        common.HexToAddress(r.Registrant),
		Name:              r.Name,
		Version:           r.Version,
		MinBet:            fromNumeric(r.MinBet),
		MaxBet:            fromNumeric(r.MaxBet),
		HouseEdgeBps:      uint32(r.HouseEdgeBps),
		MaxPayout:         fromNumeric(r.MaxPayout),
		CapabilityClaimed: r.CapabilityClaimed,
		Active:            r.Active,
		RegisteredAt:      r.RegisteredAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.Metadata != "" && r.Metadata != "{}" {
		_ = json.Unmarshal([]byte(r.Metadata), &g.Metadata)
	}
	return g
}

func toPartitionRow(p model.PartitionSnapshot, at time.Time) partitionRow {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return partitionRow{
		ID:            p.ID,
		Balance:       toNumeric(p.Balance),
		RollingVolume: toNumeric(p.RollingVolume),
		TargetReserve: toNumeric(p.TargetReserve),
		UpdatedAt:     at,
	}
}

func toBetRow(b *model.Bet) betRow {
	return betRow{
		ID:                b.ID,
		GameKey:           b.GameKey,
		Player:            b.Player.Hex(),
		Amount:            toNumeric(b.Amount),
		ExpectedMaxPayout: toNumeric(b.ExpectedMaxPayout),
		Source:            b.Source,
		Settled:           b.Settled,
		Payout:            toNumeric(b.Payout),
		PlacedAt:          b.PlacedAt,
		SettledAt:         b.SettledAt,
	}
}

func fromBetRow(r *betRow) *model.Bet {
	return &model.Bet{
		ID:                r.ID,
		GameKey:           r.GameKey,
		Player:            common.HexToAddress(r.Player),
		Amount:            fromNumeric(r.Amount),
		ExpectedMaxPayout: fromNumeric(r.ExpectedMaxPayout),
		Source:            r.Source,
		Settled:           r.Settled,
		Payout:            fromNumeric(r.Payout),
		PlacedAt:          r.PlacedAt,
		SettledAt:         r.SettledAt,
	}
}

func toNumeric(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func fromNumeric(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	n := d.BigInt()
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}
