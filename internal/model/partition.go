package model

// CentralPartitionID names the shared reserve partition.
const CentralPartitionID = "central"

// PartitionSnapshot is a point-in-time copy of a partition's balance and,
// for game partitions, its rebalancing thresholds.
type PartitionSnapshot struct {
	ID                string `json:"id"`
	Balance           uint64 `json:"balance"`
	TargetReserve     uint64 `json:"target_reserve,omitempty"`
	OverflowThreshold uint64 `json:"overflow_threshold,omitempty"`
	DrainThreshold    uint64 `json:"drain_threshold,omitempty"`
	RollingVolume     uint64 `json:"rolling_volume,omitempty"`
	OpenBets          int    `json:"open_bets,omitempty"`
}
