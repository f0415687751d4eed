package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"score-relay-system/models"
)

// GormStore serves both relational backends: a local SQLite file and a
// hosted Postgres, selected by the dialector passed at boot.
type GormStore struct {
	DB *gorm.DB
}

func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newGormStore(db)
}

func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&models.Identity{},
		&models.ScoreEvent{},
		&models.ChatMessage{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) UpsertIdentity(ctx context.Context, identity models.Identity) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "display_name", "avatar_url", "profile_link",
			"avatar_mirrored", "updated_at",
		}),
	}).Create(&identity).Error
	if err != nil {
		return fmt.Errorf("identity upsert failed: %w", err)
	}
	return nil
}

func (s *GormStore) GetIdentity(ctx context.Context, externalID string) (*models.Identity, error) {
	var identity models.Identity
	err := s.DB.WithContext(ctx).First(&identity, "external_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	return &identity, nil
}

func (s *GormStore) AppendScore(ctx context.Context, event models.ScoreEvent) error {
	if err := s.DB.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("score append failed: %w", err)
	}
	return nil
}

// BestScores aggregates max score per identity plus the earliest time
// that best was achieved. Same SQL runs on SQLite and Postgres.
func (s *GormStore) BestScores(ctx context.Context) ([]models.BestScore, error) {
	var rows []models.BestScore
	err := s.DB.WithContext(ctx).Raw(`
		SELECT b.identity_id AS identity_id,
		       b.best        AS best,
		       MIN(e.submitted_at) AS achieved_at
		FROM (
			SELECT identity_id, MAX(score) AS best
			FROM score_events
			GROUP BY identity_id
		) b
		JOIN score_events e
		  ON e.identity_id = b.identity_id AND e.score = b.best
		GROUP BY b.identity_id, b.best
	`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("best-score aggregation failed: %w", err)
	}
	return rows, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, msg models.ChatMessage) error {
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("message append failed: %w", err)
	}
	return nil
}

func (s *GormStore) RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Order("posted_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages query failed: %w", err)
	}
	// DESC gave us the newest slice of the log; callers want oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *GormStore) ListStaleAvatars(ctx context.Context, limit int) ([]models.Identity, error) {
	var identities []models.Identity
	err := s.DB.WithContext(ctx).
		Where("avatar_mirrored = ? AND avatar_url <> ''", false).
		Limit(limit).
		Find(&identities).Error
	if err != nil {
		return nil, fmt.Errorf("stale avatar query failed: %w", err)
	}
	return identities, nil
}

func (s *GormStore) MarkAvatarMirrored(ctx context.Context, externalID, mirroredURL string) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Identity{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"avatar_url":      mirroredURL,
			"avatar_mirrored": true,
		}).Error
	if err != nil {
		return fmt.Errorf("avatar mirror update failed: %w", err)
	}
	return nil
}
