package model

// RegisterGameRequest is the admin body for POST /v1/admin/games.
type RegisterGameRequest struct {
	Identity     string            `json:"identity" binding:"required"`
	Name         string            `json:"name" binding:"required"`
	Version      string            `json:"version" binding:"required"`
	MinBet       uint64            `json:"min_bet" binding:"required"`
	MaxBet       uint64            `json:"max_bet" binding:"required"`
	HouseEdgeBps uint32            `json:"house_edge_bps"`
	MaxPayout    uint64            `json:"max_payout" binding:"required"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// LimitsRequest serves both the admin override and the game's own
// risk-reducing request. MaxPayout is honoured for admins only.
type LimitsRequest struct {
	MinBet    uint64  `json:"min_bet" binding:"required"`
	MaxBet    uint64  `json:"max_bet" binding:"required"`
	MaxPayout *uint64 `json:"max_payout,omitempty"`
}

type ClaimRequest struct {
	Identity  string `json:"identity" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type ClaimResponse struct {
	GameKey string `json:"game_key"`
	Token   string `json:"token"`
}

type PlaceBetRequest struct {
	Player            string `json:"player" binding:"required"`
	Amount            uint64 `json:"amount" binding:"required"`
	ExpectedMaxPayout uint64 `json:"expected_max_payout"`
}

type PlaceBetResponse struct {
	BetID  uint64 `json:"bet_id"`
	Source string `json:"source"`
}

type SettleBetRequest struct {
	Player string `json:"player" binding:"required"`
	Payout uint64 `json:"payout"`
	Source string `json:"source" binding:"required"`
}

type SettleBetResponse struct {
	BetID       uint64 `json:"bet_id"`
	Payout      uint64 `json:"payout"`
	HouseResult int64  `json:"house_result"`
	Rebalance   string `json:"rebalance"`
	Moved       uint64 `json:"rebalance_amount"`
}

type AmountRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

type GameStatus struct {
	Game      *GameRecord       `json:"game"`
	Partition PartitionSnapshot `json:"partition"`
}
