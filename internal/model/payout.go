package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type PayoutCredit struct {
	BetID      uint64    `json:"bet_id"`
	Amount     uint64    `json:"amount"`
	CreditedAt time.Time `json:"credited_at"`
}

// PlayerPayouts is what the treasury has paid one player so far.
type PlayerPayouts struct {
	Player common.Address `json:"player"`
	Total  uint64         `json:"total"`
	Count  int            `json:"count"`
	Recent []PayoutCredit `json:"recent"`
}
