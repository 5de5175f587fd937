package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// GameRecord is the registry entry of one game module.
type GameRecord struct {
	Key               string            `json:"key"`
	Identity          common.Address    `json:"identity"`
	Registrant        common.Address    `json:"registrant"`
	Name              string            `json:"name"`
	Version           string            `json:"version"`
	MinBet            uint64            `json:"min_bet"`
	MaxBet            uint64            `json:"max_bet"`
	HouseEdgeBps      uint32            `json:"house_edge_bps"`
	MaxPayout         uint64            `json:"max_payout"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CapabilityClaimed bool              `json:"capability_claimed"`
	Active            bool              `json:"active"`
	RegisteredAt      time.Time         `json:"registered_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Clone returns a copy safe to hand outside the owning partition lock.
func (g *GameRecord) Clone() *GameRecord {
	if g == nil {
		return nil
	}
	out := *g
	if g.Metadata != nil {
		out.Metadata = make(map[string]string, len(g.Metadata))
		for k, v := range g.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
