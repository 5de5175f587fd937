package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type IdempotencyStore interface {
	// GetOrLock returns (record, true) if exists; (nil,false) if newly locked by caller.
	GetOrLock(key string) (*model.IdempotencyRecord, bool)
	Save(key string, status int, body []byte)
	Unlock(key string)
}

// InMemIdempotencyStore is used when neither Redis nor Postgres is configured.
type InMemIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*model.IdempotencyRecord // Key: scope + ":" + idempotency key
}

func NewInMemIdempotencyStore() *InMemIdempotencyStore {
	return &InMemIdempotencyStore{
		records: make(map[string]*model.IdempotencyRecord),
	}
}

func (s *InMemIdempotencyStore) GetOrLock(key string) (*model.IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok {
		return rec, true
	}

	s.records[key] = &model.IdempotencyRecord{
		Processing: true,
		CreatedAt:  time.Now(),
	}
	return nil, false
}

func (s *InMemIdempotencyStore) Save(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = &model.IdempotencyRecord{
		Status:     status,
		Body:       body,
		CreatedAt:  time.Now(),
		Processing: false,
	}
}

func (s *InMemIdempotencyStore) Unlock(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// IdempotencyMiddleware replays the stored response of a request that was
// already served under the same key. Keys are scoped per game, or per actor
// on routes without a game session.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}

		scope := c.GetString(ContextGameKey)
		if scope == "" {
			scope = c.GetString(ContextActorKey)
		}
		if scope == "" {
			c.Next()
			return
		}
		fullKey := scope + ":" + idemKey

		record, hit := store.GetOrLock(fullKey)
		if hit {
			if record.Processing {
				c.JSON(http.StatusConflict, gin.H{"error": "request in progress"})
				c.Abort()
				return
			}
			c.Data(record.Status, "application/json; charset=utf-8", record.Body)
			c.Abort()
			return
		}

		w := &responseBodyWriter{body: nil, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Server errors stay retryable.
		if c.Writer.Status() < 500 {
			store.Save(fullKey, c.Writer.Status(), w.body)
		} else {
			store.Unlock(fullKey)
		}
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}
