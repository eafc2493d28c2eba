package model

import "time"

// UserAPIKey stores exchange credentials per user and platform.
type UserAPIKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_api_key_user_platform" json:"user_id"`
	Platform  string    `gorm:"size:32;not null;uniqueIndex:idx_api_key_user_platform" json:"platform"`
	APIKey    string    `gorm:"not null" json:"-"`
	APISecret string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReferralEdge points a user at the user who referred them. At most one parent per child.
type ReferralEdge struct {
	ChildUserID  string    `gorm:"primaryKey;size:64" json:"child_user_id"`
	ParentUserID string    `gorm:"size:64;not null;index" json:"parent_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}
