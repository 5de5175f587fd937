package repository

import (
	"context"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type idempotencyRow struct {
	Key          string    `gorm:"primaryKey;type:text"`
	StatusCode   int       `gorm:"not null;default:0"`
	ResponseBody []byte    `gorm:"type:bytea"`
	Processing   bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"not null;index:idx_idempotency_created"`
}

func (idempotencyRow) TableName() string {
	return "idempotency_keys"
}

type PostgresIdempotencyStore struct {
	db *gorm.DB
}

func NewPostgresIdempotencyStore(db *gorm.DB) (*PostgresIdempotencyStore, error) {
	if err := db.AutoMigrate(&idempotencyRow{}); err != nil {
		return nil, err
	}
	return &PostgresIdempotencyStore{db: db}, nil
}

func (s *PostgresIdempotencyStore) GetOrLock(key string) (*model.IdempotencyRecord, bool) {
	ctx := context.Background()
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&idempotencyRow{Key: key, Processing: true, CreatedAt: time.Now().UTC()})
	if res.Error == nil && res.RowsAffected > 0 {
		return nil, false
	}

	var row idempotencyRow
	if err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error; err != nil {
		return nil, false
	}
	return &model.IdempotencyRecord{
		Status:     row.StatusCode,
		Body:       row.ResponseBody,
		CreatedAt:  row.CreatedAt,
		Processing: row.Processing,
	}, true
}

func (s *PostgresIdempotencyStore) Save(key string, status int, body []byte) {
	_ = s.db.WithContext(context.Background()).
		Model(&idempotencyRow{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status_code":   status,
			"response_body": body,
			"processing":    false,
		}).Error
}

func (s *PostgresIdempotencyStore) Unlock(key string) {
	_ = s.db.WithContext(context.Background()).Where("key = ?", key).Delete(&idempotencyRow{}).Error
}

func (s *PostgresIdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&idempotencyRow{}).Error
}
