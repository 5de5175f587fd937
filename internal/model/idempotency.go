package model

import "time"

// IdempotencyRecord is the cached outcome of a request carrying an
// idempotency key. Processing is set while the first request is in flight.
type IdempotencyRecord struct {
	Status     int       `json:"status"`
	Body       []byte    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	Processing bool      `json:"processing"`
}
