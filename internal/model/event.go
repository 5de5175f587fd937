package model

import "time"

type EventType string

const (
	EventGameRegistered   EventType = "game_registered"
	EventGameUnregistered EventType = "game_unregistered"
	EventGameUpdated      EventType = "game_updated"
	EventCapabilityIssued EventType = "capability_issued"
	EventBetPlaced        EventType = "bet_placed"
	EventBetSettled       EventType = "bet_settled"
	EventRebalanced       EventType = "rebalanced"
	EventDeposit          EventType = "deposit"
	EventRedeem           EventType = "redeem"
	EventSwept            EventType = "swept"
)

// TreasuryEvent describes one committed treasury mutation together with the
// post-mutation state of everything it touched.
type TreasuryEvent struct {
	Type       EventType           `json:"type"`
	GameKey    string              `json:"game_key,omitempty"`
	Amount     uint64              `json:"amount,omitempty"`
	Game       *GameRecord         `json:"game,omitempty"`
	Bet        *Bet                `json:"bet,omitempty"`
	Partitions []PartitionSnapshot `json:"partitions,omitempty"`
	At         time.Time           `json:"at"`
}

// TreasuryState is everything needed to rebuild the treasury after a restart.
// Settled bets are carried so a repeated settlement is still recognised.
type TreasuryState struct {
	Games       []*GameRecord
	Partitions  []PartitionSnapshot
	OpenBets    []*Bet
	SettledBets []*Bet
	LastBetID   uint64
}
