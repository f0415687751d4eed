package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"score-relay-system/models"
)

const (
	identityKeyPrefix = "identity:"
	unmirroredSetKey  = "identities:unmirrored"
	scoreLogKey       = "scores:log"
	bestScoreZSetKey  = "lb:best"
	achievedHashKey   = "lb:achieved"
	chatLogKey        = "chat:log"
)

// ValkeyStore is the document-style backend: identities as JSON values,
// the score ledger and chat log as append-only lists, plus a sorted-set
// index of best scores so aggregation does not rescan the ledger.
type ValkeyStore struct {
	client valkey.Client
}

func OpenValkey(addr string) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}
	return &ValkeyStore{client: client}, nil
}

// NewValkeyStore wraps an existing client (used by tests with miniredis).
func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) Close() {
	s.client.Close()
}

func (s *ValkeyStore) UpsertIdentity(ctx context.Context, identity models.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("identity marshal failed: %w", err)
	}
	setCmd := s.client.B().Set().Key(identityKeyPrefix + identity.ExternalID).Value(string(payload)).Build()
	if err := s.client.Do(ctx, setCmd).Error(); err != nil {
		return fmt.Errorf("identity upsert failed: %w", err)
	}
	if identity.AvatarURL != "" && !identity.AvatarMirrored {
		saddCmd := s.client.B().Sadd().Key(unmirroredSetKey).Member(identity.ExternalID).Build()
		if err := s.client.Do(ctx, saddCmd).Error(); err != nil {
			return fmt.Errorf("unmirrored index update failed: %w", err)
		}
	}
	return nil
}

func (s *ValkeyStore) GetIdentity(ctx context.Context, externalID string) (*models.Identity, error) {
	cmd := s.client.B().Get().Key(identityKeyPrefix + externalID).Build()
	raw, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	var identity models.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("identity unmarshal failed: %w", err)
	}
	return &identity, nil
}

// AppendScore pushes the event onto the ledger list, then bumps the
// best-score index if this event improved on the stored best. The
// read-then-write on the index is not atomic; near-simultaneous
// submissions for the same identity may interleave, which the
// announcement path already tolerates.
func (s *ValkeyStore) AppendScore(ctx context.Context, event models.ScoreEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("score marshal failed: %w", err)
	}
	rpushCmd := s.client.B().Rpush().Key(scoreLogKey).Element(string(payload)).Build()
	if err := s.client.Do(ctx, rpushCmd).Error(); err != nil {
		return fmt.Errorf("score append failed: %w", err)
	}

	zscoreCmd := s.client.B().Zscore().Key(bestScoreZSetKey).Member(event.IdentityID).Build()
	current, err := s.client.Do(ctx, zscoreCmd).AsFloat64()
	if err != nil && !valkey.IsValkeyNil(err) {
		return fmt.Errorf("best-score read failed: %w", err)
	}
	if err == nil && float64(event.Score) <= current {
		return nil
	}

	zaddCmd := s.client.B().Zadd().Key(bestScoreZSetKey).
		ScoreMember().ScoreMember(float64(event.Score), event.IdentityID).Build()
	if err := s.client.Do(ctx, zaddCmd).Error(); err != nil {
		return fmt.Errorf("best-score index update failed: %w", err)
	}
	hsetCmd := s.client.B().Hset().Key(achievedHashKey).
		FieldValue().FieldValue(event.IdentityID, event.SubmittedAt.UTC().Format(time.RFC3339Nano)).Build()
	if err := s.client.Do(ctx, hsetCmd).Error(); err != nil {
		return fmt.Errorf("achieved-at update failed: %w", err)
	}
	return nil
}

func (s *ValkeyStore) BestScores(ctx context.Context) ([]models.BestScore, error) {
	zrangeCmd := s.client.B().Zrange().Key(bestScoreZSetKey).Min("0").Max("-1").Withscores().Build()
	scores, err := s.client.Do(ctx, zrangeCmd).AsZScores()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("best-score range failed: %w", err)
	}
	if len(scores) == 0 {
		return nil, nil
	}

	rows := make([]models.BestScore, 0, len(scores))
	for _, z := range scores {
		hgetCmd := s.client.B().Hget().Key(achievedHashKey).Field(z.Member).Build()
		rawTime, err := s.client.Do(ctx, hgetCmd).ToString()
		if err != nil && !valkey.IsValkeyNil(err) {
			return nil, fmt.Errorf("achieved-at read failed: %w", err)
		}
		achievedAt, _ := time.Parse(time.RFC3339Nano, rawTime)
		rows = append(rows, models.BestScore{
			IdentityID: z.Member,
			Best:       int64(z.Score),
			AchievedAt: achievedAt,
		})
	}
	return rows, nil
}

func (s *ValkeyStore) AppendMessage(ctx context.Context, msg models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("message marshal failed: %w", err)
	}
	rpushCmd := s.client.B().Rpush().Key(chatLogKey).Element(string(payload)).Build()
	if err := s.client.Do(ctx, rpushCmd).Error(); err != nil {
		return fmt.Errorf("message append failed: %w", err)
	}
	return nil
}

func (s *ValkeyStore) RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	cmd := s.client.B().Lrange().Key(chatLogKey).Start(int64(-limit)).Stop(-1).Build()
	raw, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recent messages query failed: %w", err)
	}
	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, entry := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("message unmarshal failed: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *ValkeyStore) ListStaleAvatars(ctx context.Context, limit int) ([]models.Identity, error) {
	cmd := s.client.B().Smembers().Key(unmirroredSetKey).Build()
	ids, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stale avatar query failed: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	identities := make([]models.Identity, 0, len(ids))
	for _, id := range ids {
		identity, err := s.GetIdentity(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		identities = append(identities, *identity)
	}
	return identities, nil
}

func (s *ValkeyStore) MarkAvatarMirrored(ctx context.Context, externalID, mirroredURL string) error {
	identity, err := s.GetIdentity(ctx, externalID)
	if err != nil {
		return err
	}
	identity.AvatarURL = mirroredURL
	identity.AvatarMirrored = true
	if err := s.UpsertIdentity(ctx, *identity); err != nil {
		return err
	}
	sremCmd := s.client.B().Srem().Key(unmirroredSetKey).Member(externalID).Build()
	if err := s.client.Do(ctx, sremCmd).Error(); err != nil {
		return fmt.Errorf("unmirrored index removal failed: %w", err)
	}
	return nil
}
