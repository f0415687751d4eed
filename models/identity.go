package models

import (
	"time"
)

// Identity is the local snapshot of an externally authenticated user.
// Owned solely by this service; populated on every successful login
// (upsert, last-write-wins). Never deleted.
type Identity struct {
	ExternalID  string    `gorm:"primaryKey" json:"external_id"` // stable key from the identity provider
	Username    string    `gorm:"index;not null" json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `gorm:"type:text" json:"avatar_url"`
	ProfileLink string    `gorm:"type:text" json:"profile_link"`

	// Avatar mirroring bookkeeping (see workers/avatar_mirror_worker.go).
	AvatarMirrored bool `gorm:"default:false" json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Label returns the name shown in leaderboard rows and announcements.
func (i Identity) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}
