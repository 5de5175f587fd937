package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
)

type AuditService struct {
	logChan chan *model.AuditLog
	logFile *os.File
	buffer  *auditBuffer
	repo    AuditRepo
	done    chan struct{}
}

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, gameKey string, limit int, from, to *time.Time) ([]*model.AuditLog, error)
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// One file per start day.
	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditLog, 1000),
		logFile: f,
		buffer:  newAuditBuffer(1000),
		repo:    repo,
		done:    make(chan struct{}),
	}

	go svc.processLogs()

	return svc, nil
}

func (s *AuditService) Log(entry *model.AuditLog) {
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	select {
	case s.logChan <- entry:
	default:
		logger.Warn("audit log buffer full, dropping entry", "id", entry.ID, "path", entry.Path)
	}
}

func (s *AuditService) List(ctx context.Context, gameKey string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, gameKey, limit, from, to)
		if err == nil {
			return records, nil
		}
		logger.Warn("audit repo list failed, using in-memory buffer", "error", err)
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(gameKey, limit, from, to), nil
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.Error("failed to write audit log to repo", "id", entry.ID, "error", err)
			}
		}
		if err := encoder.Encode(entry); err != nil {
			logger.Error("failed to write audit log file", "id", entry.ID, "error", err)
		}
	}
}

// Close flushes pending entries. Log must not be called afterwards.
func (s *AuditService) Close() {
	close(s.logChan)
	<-s.done
	s.logFile.Close()
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List walks the ring newest first.
func (b *auditBuffer) List(gameKey string, limit int, from, to *time.Time) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if gameKey != "" && entry.GameKey != gameKey {
			continue
		}
		if from != nil && entry.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && entry.CreatedAt.After(*to) {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
