package models

// LeaderboardRow is a derived view, never persisted: best score per
// identity joined with its display profile. Rank is the 1-based position
// after the calculator's deterministic ordering.
type LeaderboardRow struct {
	Rank         int    `json:"rank"`
	IdentityID   string `json:"identity_id"`
	DisplayLabel string `json:"display_label"`
	AvatarURL    string `json:"avatar_url"`
	ProfileLink  string `json:"profile_link"`
	BestScore    int64  `json:"best_score"`
}

// PublicLeaderboardLimit caps the rows returned by the public endpoint.
// The placement detector computes its own (smaller) prefix independently.
const PublicLeaderboardLimit = 20

// TopPlacements is how deep a submission must land to trigger an announcement.
const TopPlacements = 3
