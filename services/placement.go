package services

import (
	"fmt"

	"score-relay-system/models"
)

// DetectPlacement decides whether a just-appended score event earns an
// announcement. It fires iff the event's identity sits in the top-3
// prefix AND its recomputed best equals the submitted score exactly —
// a lower, non-improving submission from an already-placed identity
// must stay silent.
func DetectPlacement(top []models.LeaderboardRow, event models.ScoreEvent) (models.LeaderboardRow, bool) {
	for _, row := range top {
		if row.Rank > models.TopPlacements {
			break
		}
		if row.IdentityID == event.IdentityID && row.BestScore == event.Score {
			return row, true
		}
	}
	return models.LeaderboardRow{}, false
}

// AnnouncementText is deterministic given (rank, label, score).
func AnnouncementText(rank int, label string, score int64) string {
	return fmt.Sprintf("🏆 %s takes #%d on the leaderboard with a score of %d!", label, rank, score)
}
