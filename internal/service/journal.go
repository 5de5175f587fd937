package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/GoPolymarket/housevault/internal/pkg/metrics"
)

const (
	journalRetryBase = 100 * time.Millisecond
	journalRetryMax  = 5 * time.Second
)

type TreasuryStore interface {
	Apply(ctx context.Context, ev model.TreasuryEvent) error
	Load(ctx context.Context) (model.TreasuryState, error)
}

type TreasuryMirror interface {
	Apply(ctx context.Context, ev model.TreasuryEvent) error
}

// Journal persists treasury events in commit order. It never drops an
// event while running: a full buffer blocks Publish, and a failing store is
// retried until it recovers, so the treasury stalls instead of diverging
// from what a restart would restore. The writer goroutine never calls back
// into the treasury, which keeps blocking under partition locks safe.
type Journal struct {
	mu     sync.RWMutex
	closed bool
	events chan model.TreasuryEvent

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	lost      atomic.Int64

	store  TreasuryStore
	mirror TreasuryMirror
}

func NewJournal(store TreasuryStore, mirror TreasuryMirror, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 4096
	}
	j := &Journal{
		events: make(chan model.TreasuryEvent, buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		store:  store,
		mirror: mirror,
	}
	go j.run()
	return j
}

func (j *Journal) Publish(ev model.TreasuryEvent) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.lose(ev, "journal closed")
		return
	}
	select {
	case j.events <- ev:
	default:
		metrics.JournalStalls.Inc()
		logger.Warn("journal buffer full, waiting for writer", "type", ev.Type, "game", ev.GameKey)
		j.events <- ev
	}
}

// Load returns the persisted state, or an empty state without a store.
func (j *Journal) Load(ctx context.Context) (model.TreasuryState, error) {
	if j.store == nil {
		return model.TreasuryState{}, nil
	}
	return j.store.Load(ctx)
}

// Lost reports how many events never reached the store.
func (j *Journal) Lost() int64 {
	return j.lost.Load()
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.events {
		j.apply(ev)
	}
}

func (j *Journal) apply(ev model.TreasuryEvent) {
	if j.store != nil {
		j.applyStore(ev)
	}
	if j.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.mirror.Apply(ctx, ev); err != nil {
			logger.Warn("failed to mirror treasury event", "type", ev.Type, "game", ev.GameKey, "error", err)
		}
	}
}

// applyStore retries until the store accepts ev or the journal is closing.
func (j *Journal) applyStore(ev model.TreasuryEvent) {
	wait := journalRetryBase
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := j.store.Apply(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		logger.LogError(ctx, err, "failed to journal treasury event",
			"type", ev.Type, "game", ev.GameKey, "attempt", attempt)

		select {
		case <-j.quit:
			j.lose(ev, err.Error())
			return
		case <-time.After(wait):
		}
		metrics.JournalRetries.Inc()
		wait = min(wait*2, journalRetryMax)
	}
}

func (j *Journal) lose(ev model.TreasuryEvent, reason string) {
	j.lost.Add(1)
	metrics.JournalLost.Inc()
	logger.Error("treasury event not persisted", "type", ev.Type, "game", ev.GameKey, "reason", reason)
}

// Close stops accepting events and waits for the buffer to drain. It fails
// when ctx expires first or when any event was lost, in which case the
// persisted state is behind the in-memory treasury.
func (j *Journal) Close(ctx context.Context) error {
	j.closeOnce.Do(func() {
		close(j.quit)
		// Publishers blocked on a full buffer hold the read lock until the
		// writer makes room, so take the write lock off the caller's path.
		go func() {
			j.mu.Lock()
			j.closed = true
			close(j.events)
			j.mu.Unlock()
		}()
	})

	select {
	case <-j.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if n := j.lost.Load(); n > 0 {
		return fmt.Errorf("journal lost %d treasury events", n)
	}
	return nil
}
