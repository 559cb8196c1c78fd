package store

import (
	"context"
	"fmt"
	"time"

	"pinkchat/backend/internal/models"
	"pinkchat/backend/pkg/config"
	"pinkchat/backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore persists to postgres through gorm
type GormStore struct {
	db        *gorm.DB
	stamp     *stamper
	statusTTL time.Duration
}

// NewGormStore creates a store backed by db
func NewGormStore(db *gorm.DB, statusTTL time.Duration) *GormStore {
	if statusTTL <= 0 {
		statusTTL = models.DefaultStatusTTL
	}
	return &GormStore{db: db, stamp: newStamper(nil), statusTTL: statusTTL}
}

// AutoMigrate creates or updates the relay tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Message{}, &models.StatusPost{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (s *GormStore) SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	stored := *m
	stored.ID = uuid.NewString()
	stored.Delivered = false
	stored.Read = false
	stored.Timestamp = s.stamp.next(stored.Sender)

	if err := s.db.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, errors.NewStoreError(err)
	}
	return &stored, nil
}

func (s *GormStore) MarkDelivered(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "delivered")
}

func (s *GormStore) MarkRead(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, "read")
}

func (s *GormStore) setFlag(ctx context.Context, id, column string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Update(column, true)
	if res.Error != nil {
		return errors.NewStoreError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, f Filter, order Order) ([]models.Message, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{})
	if f.Sender != "" {
		q = q.Where("sender = ?", f.Sender)
	}
	if f.Receiver != "" {
		q = q.Where("receiver = ?", f.Receiver)
	}
	if !f.Since.IsZero() {
		q = q.Where("timestamp >= ?", f.Since)
	}
	if order == OrderDesc {
		q = q.Order("timestamp DESC").Order("id DESC")
	} else {
		q = q.Order("timestamp ASC").Order("id ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var messages []models.Message
	if err := q.Find(&messages).Error; err != nil {
		return nil, errors.NewStoreError(err)
	}
	return messages, nil
}

func (s *GormStore) SaveStatus(ctx context.Context, p *models.StatusPost) (*models.StatusPost, error) {
	stored := *p
	stored.ID = uuid.NewString()
	stored.ApplyDefaults(time.Now().UTC(), s.statusTTL)

	if err := s.db.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, errors.NewStoreError(err)
	}
	return &stored, nil
}

func (s *GormStore) ListStatuses(ctx context.Context, author string) ([]models.StatusPost, error) {
	q := s.db.WithContext(ctx).Where("expires_at > ?", time.Now().UTC())
	if author != "" {
		q = q.Where("author = ?", author)
	}

	var posts []models.StatusPost
	if err := q.Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, errors.NewStoreError(err)
	}
	return posts, nil
}

func (s *GormStore) PurgeExpiredStatuses(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now().UTC()).
		Delete(&models.StatusPost{})
	if res.Error != nil {
		return 0, errors.NewStoreError(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	if err := config.Ping(ctx, s.db, 0); err != nil {
		return errors.NewStoreError(err)
	}
	return nil
}
