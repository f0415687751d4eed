package models

import (
	"time"
)

// ScoreEvent is one row of the append-only score ledger.
// Events are immutable: no update or delete path exists anywhere in the
// service, and the ledger is the single source of truth for ranking.
type ScoreEvent struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	IdentityID  string    `json:"identity_id" gorm:"index;not null"` // references Identity.ExternalID
	Score       int64     `json:"score" gorm:"not null;check:score >= 0"`
	SubmittedAt time.Time `json:"submitted_at" gorm:"index;autoCreateTime"`
}

// BestScore is the per-identity aggregate the storage layer hands to the
// leaderboard calculator. AchievedAt is when the identity first reached
// its current best; the calculator uses it for deterministic tie-breaks.
type BestScore struct {
	IdentityID string    `json:"identity_id"`
	Best       int64     `json:"best"`
	AchievedAt time.Time `json:"achieved_at"`
}
