package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"score-relay-system/models"
	"score-relay-system/storage"
)

// ScoreService owns the submission path: append to the ledger, then
// recompute the top-3 prefix and raise an announcement if this event
// newly claimed a placement.
type ScoreService struct {
	Store       storage.Store
	Leaderboard *LeaderboardService
	Chat        *ChatService
}

func NewScoreService(store storage.Store, leaderboard *LeaderboardService, chat *ChatService) *ScoreService {
	return &ScoreService{Store: store, Leaderboard: leaderboard, Chat: chat}
}

type submitScoreRequest struct {
	Score int64 `json:"score"`
}

// SubmitScore records a score for the authenticated identity. The ledger
// append is the durable commit point: once it succeeds the submission is
// acknowledged no matter what the announcement step does.
func (s *ScoreService) SubmitScore(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthenticated — log in before submitting scores",
		})
	}

	var req submitScoreRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if req.Score < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "score must be a non-negative integer"})
	}

	// Referential integrity, enforced at write time: the login path
	// upserted this identity, so a miss here is corrupt data.
	if _, err := s.Store.GetIdentity(c.Context(), userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("🚨 [SCORES] integrity violation: session identity %s missing from directory", userID)
			return c.Status(500).JSON(fiber.Map{"error": "internal data error"})
		}
		log.Printf("❌ [SCORES] identity lookup failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "storage unavailable"})
	}

	event := models.ScoreEvent{
		ID:          uuid.NewString(),
		IdentityID:  userID,
		Score:       req.Score,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.Store.AppendScore(c.Context(), event); err != nil {
		log.Printf("❌ [SCORES] ledger append failed for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "storage unavailable"})
	}

	// The announcement step runs after the commit point. Its failures are
	// an operator concern, never the submitter's.
	s.evaluatePlacement(c.Context(), event)

	return c.Status(201).JSON(fiber.Map{"accepted": true})
}

// evaluatePlacement recomputes the top-3 prefix against the snapshot the
// storage layer returns for this submission and announces a newly earned
// placement. Concurrent submissions each evaluate independently; the
// exact-match-to-best check keeps stale snapshots from re-announcing old
// scores, and the remaining races are accepted rather than hidden behind
// a global lock.
func (s *ScoreService) evaluatePlacement(ctx context.Context, event models.ScoreEvent) {
	top, err := s.Leaderboard.Compute(ctx, models.TopPlacements)
	if err != nil {
		log.Printf("⚠️ [SCORES] placement recompute failed for %s: %v", event.IdentityID, err)
		return
	}

	row, hit := DetectPlacement(top, event)
	if !hit {
		return
	}

	text := AnnouncementText(row.Rank, row.DisplayLabel, event.Score)
	if err := s.Chat.Announce(ctx, text); err != nil {
		log.Printf("⚠️ [SCORES] announcement failed for %s (rank %d): %v", event.IdentityID, row.Rank, err)
		return
	}
	log.Printf("📣 [SCORES] %s entered the top %d at rank %d with %d", event.IdentityID, models.TopPlacements, row.Rank, event.Score)
}
