package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"score-relay-system/models"
)

func newTestValkeyStore(t *testing.T) *ValkeyStore {
	t.Helper()

	mini := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{mini.Addr()},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("failed to create valkey client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		t.Fatalf("failed to ping miniredis: %v", err)
	}

	store := NewValkeyStore(client)
	t.Cleanup(func() {
		store.Close()
		mini.Close()
	})
	return store
}

func TestValkeyStoreIdentityRoundTrip(t *testing.T) {
	store := newTestValkeyStore(t)
	ctx := context.Background()

	identity := models.Identity{ExternalID: "u1", Username: "alice", DisplayName: "Alice", AvatarURL: "http://cdn/a.png"}
	if err := store.UpsertIdentity(ctx, identity); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := store.GetIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Username != "alice" || got.DisplayName != "Alice" {
		t.Fatalf("unexpected identity: %+v", got)
	}

	if _, err := store.GetIdentity(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValkeyStoreBestScoresTrackImprovementOnly(t *testing.T) {
	store := newTestValkeyStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	appendScore(t, store, "a", 10, base)
	appendScore(t, store, "a", 50, base.Add(1*time.Minute))
	// Lower submission must not disturb the best or its achievement time.
	appendScore(t, store, "a", 20, base.Add(2*time.Minute))
	appendScore(t, store, "b", 30, base.Add(3*time.Minute))

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
	if byID["a"].Best != 50 || byID["b"].Best != 30 {
		t.Fatalf("wrong best scores: %+v", byID)
	}
	if !byID["a"].AchievedAt.Equal(base.Add(1 * time.Minute)) {
		t.Fatalf("achievedAt moved on a non-improving submission: %v", byID["a"].AchievedAt)
	}
}

func TestValkeyStoreRecentMessagesOrderAndLimit(t *testing.T) {
	store := newTestValkeyStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		err := store.AppendMessage(ctx, models.ChatMessage{
			ID:       uuid.NewString(),
			Author:   "alice",
			Text:     text,
			PostedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append message failed: %v", err)
		}
	}

	msgs, err := store.RecentMessages(ctx, 2)
	if err != nil {
		t.Fatalf("recent messages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "three" || msgs[1].Text != "four" {
		t.Fatalf("expected last two oldest-first, got %+v", msgs)
	}
}

func TestValkeyStoreAvatarMirrorBookkeeping(t *testing.T) {
	store := newTestValkeyStore(t)
	ctx := context.Background()

	if err := store.UpsertIdentity(ctx, models.Identity{ExternalID: "u1", Username: "alice", AvatarURL: "http://cdn/a.png"}); err != nil {
		t.Fatal(err)
	}

	stale, err := store.ListStaleAvatars(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ExternalID != "u1" {
		t.Fatalf("expected u1 stale, got %+v", stale)
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
