package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type auditRow struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	GameKey      string    `gorm:"type:varchar(66);index:idx_audit_logs_game,priority:1"`
	Actor        string    `gorm:"type:varchar(16)"`
	Method       string    `gorm:"type:varchar(8)"`
	Path         string    `gorm:"type:text"`
	IP           string    `gorm:"type:varchar(64)"`
	UserAgent    string    `gorm:"type:text"`
	RequestBody  string    `gorm:"type:text"`
	StatusCode   int       `gorm:"not null;default:0"`
	ResponseBody string    `gorm:"type:text"`
	LatencyMs    int64     `gorm:"not null;default:0"`
	Context      string    `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt    time.Time `gorm:"not null;index:idx_audit_logs_game,priority:2,sort:desc;index:idx_audit_logs_created"`
}

func (auditRow) TableName() string {
	return "audit_logs"
}

type PostgresAuditRepo struct {
	db *gorm.DB
}

func NewPostgresAuditRepo(db *gorm.DB) (*PostgresAuditRepo, error) {
	if err := db.AutoMigrate(&auditRow{}); err != nil {
		return nil, err
	}
	return &PostgresAuditRepo{db: db}, nil
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	contextJSON := []byte("{}")
	if len(entry.Context) > 0 {
		if b, err := json.Marshal(entry.Context); err == nil {
			contextJSON = b
		}
	}
	row := auditRow{
		ID:           entry.ID,
		GameKey:      entry.GameKey,
		Actor:        entry.Actor,
		Method:       entry.Method,
		Path:         entry.Path,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		RequestBody:  entry.RequestBody,
		StatusCode:   entry.StatusCode,
		ResponseBody: entry.ResponseBody,
		LatencyMs:    entry.LatencyMs,
		Context:      string(contextJSON),
		CreatedAt:    entry.CreatedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *PostgresAuditRepo) List(ctx context.Context, gameKey string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&auditRow{})
	if gameKey != "" {
		q = q.Where("game_key = ?", gameKey)
	}
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}

	var rows []auditRow
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]*model.AuditLog, 0, len(rows))
	for _, row := range rows {
		entry := &model.AuditLog{
			ID:           row.ID,
			GameKey:      row.GameKey,
			Actor:        row.Actor,
			Method:       row.Method,
			Path:         row.Path,
			IP:           row.IP,
			UserAgent:    row.UserAgent,
			RequestBody:  row.RequestBody,
			StatusCode:   row.StatusCode,
			ResponseBody: row.ResponseBody,
			LatencyMs:    row.LatencyMs,
			CreatedAt:    row.CreatedAt,
		}
		if row.Context != "" {
			_ = json.Unmarshal([]byte(row.Context), &entry.Context)
		}
		if entry.Context == nil {
			entry.Context = map[string]interface{}{}
		}
		records = append(records, entry)
	}
	return records, nil
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&auditRow{}).Error
}
