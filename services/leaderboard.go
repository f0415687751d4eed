package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"score-relay-system/models"
	"score-relay-system/storage"
)

// LeaderboardService derives the ranked view from the score ledger.
// The leaderboard is recomputed from scratch on every read and every
// submission; it is never persisted as ground truth.
type LeaderboardService struct {
	Store storage.Store
}

func NewLeaderboardService(store storage.Store) *LeaderboardService {
	return &LeaderboardService{Store: store}
}

// Compute returns the top limit rows, ranked by best score descending.
// Ties break deterministically: earliest achievement of that best score
// first, then identity key ascending. The source left this to whatever
// the query engine returned; fixing it here keeps every backend in
// agreement.
func (s *LeaderboardService) Compute(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	best, err := s.Store.BestScores(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(best, func(i, j int) bool {
		if best[i].Best != best[j].Best {
			return best[i].Best > best[j].Best
		}
		if !best[i].AchievedAt.Equal(best[j].AchievedAt) {
			return best[i].AchievedAt.Before(best[j].AchievedAt)
		}
		return best[i].IdentityID < best[j].IdentityID
	})

	if limit > 0 && len(best) > limit {
		best = best[:limit]
	}

	rows := make([]models.LeaderboardRow, 0, len(best))
	for i, b := range best {
		row := models.LeaderboardRow{
			Rank:       i + 1,
			IdentityID: b.IdentityID,
			BestScore:  b.Best,
		}
		identity, err := s.Store.GetIdentity(ctx, b.IdentityID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			// Login upserts the profile before any score can reference it,
			// so a missing profile is corrupt data. Keep the row (dropping
			// it would shift everyone's rank) and flag it loudly.
			log.Printf("🚨 [LEADERBOARD] integrity violation: score events reference unknown identity %s", b.IdentityID)
			row.DisplayLabel = b.IdentityID
		case err != nil:
			return nil, err
		default:
			row.DisplayLabel = identity.Label()
			row.AvatarURL = identity.AvatarURL
			row.ProfileLink = identity.ProfileLink
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetLeaderboard serves the public view, capped at 20 rows.
func (s *LeaderboardService) GetLeaderboard(c *fiber.Ctx) error {
	limit := models.PublicLeaderboardLimit
	if raw := c.Query("limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		if n < limit {
			limit = n
		}
	}

	rows, err := s.Compute(c.Context(), limit)
	if err != nil {
		log.Printf("❌ [LEADERBOARD] compute failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "leaderboard unavailable"})
	}
	return c.JSON(rows)
}
