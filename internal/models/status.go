package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultStatusTTL is how long a status post stays readable
const DefaultStatusTTL = 24 * time.Hour

// StatusPost is an ephemeral story-style post that expires after a TTL
type StatusPost struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Author    string    `json:"author" gorm:"not null;index"`
	MediaRef  string    `json:"mediaRef" gorm:"column:media_ref"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index"`
}

// TableName overrides the table name
func (StatusPost) TableName() string {
	return "status_posts"
}

// BeforeCreate sets the creation time and default expiry
func (s *StatusPost) BeforeCreate(tx *gorm.DB) error {
	s.applyDefaults(time.Now(), DefaultStatusTTL)
	return nil
}

// ApplyDefaults fills CreatedAt and ExpiresAt when unset
func (s *StatusPost) ApplyDefaults(now time.Time, ttl time.Duration) {
	s.applyDefaults(now, ttl)
}

func (s *StatusPost) applyDefaults(now time.Time, ttl time.Duration) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(ttl)
	}
}

// Expired reports whether the post is past its expiry at now
func (s *StatusPost) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
