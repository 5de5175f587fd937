package model

// DailyStats counts one game's betting activity for a UTC day.
type DailyStats struct {
	GameKey string `json:"game_key"`
	Date    string `json:"date"`
	Placed  int64  `json:"placed"`
	Settled int64  `json:"settled"`
	Wagered uint64 `json:"wagered"`
	Paid    uint64 `json:"paid"`
}

// HouseResult is what the house kept from the day's settled wagers so far.
func (s DailyStats) HouseResult() int64 {
	return houseResult(s.Wagered, s.Paid)
}
