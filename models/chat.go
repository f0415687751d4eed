package models

import (
	"time"
)

// SystemAuthor labels messages generated by the service itself
// (top-3 announcements, daily recaps). User-typed messages carry the
// poster's username instead; both share the same log and broadcast path.
const SystemAuthor = "📢 system"

// ChatMessage is one row of the append-only chat/announcement log,
// totally ordered by PostedAt (which coincides with insertion order).
type ChatMessage struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	Author   string    `json:"author" gorm:"not null"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	PostedAt time.Time `json:"posted_at" gorm:"index;autoCreateTime"`
}

// IsAnnouncement reports whether the message was system-generated.
func (m ChatMessage) IsAnnouncement() bool {
	return m.Author == SystemAuthor
}
