// services/recap.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRecapScheduler posts a daily system announcement naming the
// current leader. Purely additive: it reuses the same compute and
// chat paths as score submissions.
func StartRecapScheduler(leaderboard *LeaderboardService, chat *ChatService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			top, err := leaderboard.Compute(ctx, 1)
			if err != nil {
				log.Printf("[Recap] leaderboard compute failed: %v", err)
				return
			}
			if len(top) == 0 {
				return
			}

			leader := top[0]
			text := AnnouncementText(1, leader.DisplayLabel, leader.BestScore)
			if err := chat.Announce(ctx, "🌅 Daily recap: "+text); err != nil {
				log.Printf("[Recap] announcement failed: %v", err)
				return
			}
			log.Printf("✅ Daily recap posted: %s leads with %d", leader.DisplayLabel, leader.BestScore)
		}),
	)
}
