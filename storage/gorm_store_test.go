package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"score-relay-system/models"
)

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return store
}

func appendScore(t *testing.T, store Store, identityID string, score int64, at time.Time) {
	t.Helper()
	err := store.AppendScore(context.Background(), models.ScoreEvent{
		ID:          uuid.NewString(),
		IdentityID:  identityID,
		Score:       score,
		SubmittedAt: at,
	})
	if err != nil {
		t.Fatalf("append score failed: %v", err)
	}
}

func TestGormStoreIdentityUpsertIsLastWriteWins(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	first := models.Identity{ExternalID: "u1", Username: "alice", DisplayName: "Alice", AvatarURL: "http://a/1.png"}
	if err := store.UpsertIdentity(ctx, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := first
	second.DisplayName = "Alice R."
	second.AvatarURL = "http://a/2.png"
	if err := store.UpsertIdentity(ctx, second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := store.GetIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DisplayName != "Alice R." || got.AvatarURL != "http://a/2.png" {
		t.Fatalf("upsert did not take the latest write: %+v", got)
	}
}

func TestGormStoreGetIdentityNotFound(t *testing.T) {
	store := newTestGormStore(t)

	_, err := store.GetIdentity(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormStoreBestScoresAggregation(t *testing.T) {
	store := newTestGormStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	appendScore(t, store, "a", 10, base)
	appendScore(t, store, "a", 50, base.Add(1*time.Minute))
	appendScore(t, store, "a", 20, base.Add(2*time.Minute))
	appendScore(t, store, "b", 50, base.Add(3*time.Minute))

	best, err := store.BestScores(context.Background())
	if err != nil {
		t.Fatalf("best scores failed: %v", err)
	}
	if len(best) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(best))
	}

	byID := make(map[string]models.BestScore, len(best))
	for _, b := range best {
		byID[b.IdentityID] = b
	}
	if byID["a"].Best != 50 || byID["b"].Best != 50 {
		t.Fatalf("wrong best scores: %+v", byID)
	}
	if !byID["a"].AchievedAt.Equal(base.Add(1 * time.Minute)) {
		t.Fatalf("achievedAt should be when the best was first reached, got %v", byID["a"].AchievedAt)
	}
}

func TestGormStoreBestScoresEarliestAchievementOfRepeatedBest(t *testing.T) {
	store := newTestGormStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Same best submitted twice: achievement time is the first one.
	appendScore(t, store, "a", 40, base)
	appendScore(t, store, "a", 40, base.Add(5*time.Minute))

	best, err := store.BestScores(context.Background())
	if err != nil {
		t.Fatalf("best scores failed: %v", err)
	}
	if len(best) != 1 || !best[0].AchievedAt.Equal(base) {
		t.Fatalf("expected single aggregate achieved at %v, got %+v", base, best)
	}
}

func TestGormStoreRecentMessagesOrderAndLimit(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.AppendMessage(ctx, models.ChatMessage{
			ID:       uuid.NewString(),
			Author:   "alice",
			Text:     string(rune('a' + i)),
			PostedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append message failed: %v", err)
		}
	}

	msgs, err := store.RecentMessages(ctx, 3)
	if err != nil {
		t.Fatalf("recent messages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "c" || msgs[1].Text != "d" || msgs[2].Text != "e" {
		t.Fatalf("expected last three oldest-first, got %+v", msgs)
	}

	// Fewer messages than the limit: all of them, oldest first.
	all, err := store.RecentMessages(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 || all[0].Text != "a" || all[4].Text != "e" {
		t.Fatalf("expected full history oldest-first, got %+v", all)
	}
}

func TestGormStoreAvatarMirrorBookkeeping(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()

	if err := store.UpsertIdentity(ctx, models.Identity{ExternalID: "u1", Username: "alice", AvatarURL: "http://cdn/a.png"}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertIdentity(ctx, models.Identity{ExternalID: "u2", Username: "bob"}); err != nil {
		t.Fatal(err)
	}

	stale, err := store.ListStaleAvatars(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ExternalID != "u1" {
		t.Fatalf("expected only u1 stale, got %+v", stale)
	}

	if err := store.MarkAvatarMirrored(ctx, "u1", "http://mirror/a.png"); err != nil {
		t.Fatal(err)
	}

	stale, err = store.ListStaleAvatars(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stale avatars after mirroring, got %+v", stale)
	}

	got, err := store.GetIdentity(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.AvatarURL != "http://mirror/a.png" || !got.AvatarMirrored {
		t.Fatalf("mirror update not applied: %+v", got)
	}
}
