// storage/storage.go — engine-agnostic persistence capabilities.
package storage

import (
	"context"
	"errors"

	"score-relay-system/models"
)

// ErrNotFound is returned by GetIdentity when no profile exists for the key.
// After a login upsert this should be impossible; callers treat it as a
// data-integrity condition, not a user error.
var ErrNotFound = errors.New("storage: not found")

// Store is the full capability set the service needs from a backend.
// The ranking/placement/broadcast logic is agnostic to which engine
// implements it (relational via GORM, document-style via Valkey).
//
// Append* methods are strictly append-only: no implementation exposes
// update or delete for score events or chat messages.
type Store interface {
	// Identity directory
	UpsertIdentity(ctx context.Context, identity models.Identity) error
	GetIdentity(ctx context.Context, externalID string) (*models.Identity, error)

	// Score ledger
	AppendScore(ctx context.Context, event models.ScoreEvent) error
	// BestScores returns one unsorted aggregate per identity; ordering is
	// owned by the leaderboard calculator so ranking semantics never
	// depend on the engine.
	BestScores(ctx context.Context) ([]models.BestScore, error)

	// Chat/announcement log
	AppendMessage(ctx context.Context, msg models.ChatMessage) error
	// RecentMessages returns the last limit messages, oldest first.
	RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)

	// Avatar mirror bookkeeping
	ListStaleAvatars(ctx context.Context, limit int) ([]models.Identity, error)
	MarkAvatarMirrored(ctx context.Context, externalID, mirroredURL string) error
}
