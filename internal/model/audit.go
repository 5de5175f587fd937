package model

import (
	"time"
)

// AuditLog is one HTTP call against the treasury API.
type AuditLog struct {
	ID        string `json:"id"`
	GameKey   string `json:"game_key"`
	Actor     string `json:"actor"` // admin, investor, game or anonymous
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody  string `json:"request_body"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context added by handlers, e.g. bet id or rebalance direction.
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
