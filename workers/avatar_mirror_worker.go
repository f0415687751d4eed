// workers/avatar_mirror_worker.go
package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"score-relay-system/storage"
	"score-relay-system/utils"
)

const mirrorBatchSize = 20

// AvatarMirrorWorker copies externally hosted avatar images into our
// own object storage and rewrites the stored URL, so leaderboard rows
// never depend on the provider's CDN staying up.
type AvatarMirrorWorker struct {
	store      storage.Store
	interval   time.Duration
	httpClient *http.Client
}

func NewAvatarMirrorWorker(store storage.Store) *AvatarMirrorWorker {
	return &AvatarMirrorWorker{
		store:      store,
		interval:   1 * time.Minute,
		httpClient: utils.HTTPClient,
	}
}

func (w *AvatarMirrorWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Avatar Mirror Worker (provider CDN → R2)…")
	go w.run(ctx)
}

func (w *AvatarMirrorWorker) run(ctx context.Context) {
	if err := w.mirrorBatch(ctx); err != nil {
		log.Printf("⚠️ Initial avatar mirror pass failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.mirrorBatch(ctx); err != nil {
				log.Printf("❌ Avatar mirror pass failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Avatar Mirror Worker stopped")
			return
		}
	}
}

func (w *AvatarMirrorWorker) mirrorBatch(ctx context.Context) error {
	stale, err := w.store.ListStaleAvatars(ctx, mirrorBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale avatars: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	log.Printf("[MIRROR] 📡 %d avatar(s) to mirror", len(stale))
	for _, identity := range stale {
		if err := w.mirrorOne(ctx, identity.ExternalID, identity.AvatarURL); err != nil {
			// One bad avatar must not stall the batch; it stays stale
			// and gets retried next pass.
			log.Printf("⚠️ [MIRROR] failed for %s: %v", identity.ExternalID, err)
		}
	}
	return nil
}

func (w *AvatarMirrorWorker) mirrorOne(ctx context.Context, externalID, avatarURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return fmt.Errorf("invalid avatar URL '%s': %w", avatarURL, err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("avatar download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("avatar download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return fmt.Errorf("avatar read failed: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	key := fmt.Sprintf("avatars/%s", externalID)
	mirroredURL, err := utils.UploadBytesToR2(ctx, key, data, contentType)
	if err != nil {
		return err
	}

	if err := w.store.MarkAvatarMirrored(ctx, externalID, mirroredURL); err != nil {
		return err
	}
	log.Printf("✅ [MIRROR] avatar mirrored for %s", externalID)
	return nil
}
