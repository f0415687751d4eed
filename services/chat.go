package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"score-relay-system/models"
	"score-relay-system/storage"
)

// ReplayLimit is how much history a freshly connected client receives
// before live delivery starts.
const ReplayLimit = 50

const keepaliveInterval = 15 * time.Second

// ChatService owns the chat/announcement log and the broadcast path.
// Every message — user-typed or system-generated — is appended to the
// log first and published to the hub second, so a client connecting
// between the two still sees it via replay.
type ChatService struct {
	Store storage.Store
	Hub   *Hub
}

func NewChatService(store storage.Store, hub *Hub) *ChatService {
	return &ChatService{Store: store, Hub: hub}
}

// Append logs a message and, once durably logged, publishes it.
func (s *ChatService) Append(ctx context.Context, author, text string) error {
	msg := models.ChatMessage{
		ID:       uuid.NewString(),
		Author:   author,
		Text:     text,
		PostedAt: time.Now().UTC(),
	}
	if err := s.Store.AppendMessage(ctx, msg); err != nil {
		return err
	}
	s.Hub.Publish(msg)
	return nil
}

// Announce appends a system-authored message (top-3 placements, recaps).
func (s *ChatService) Announce(ctx context.Context, text string) error {
	return s.Append(ctx, models.SystemAuthor, text)
}

type postMessageRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// PostMessage accepts a chat message unconditionally and broadcasts it.
func (s *ChatService) PostMessage(c *fiber.Ctx) error {
	var req postMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(400).JSON(fiber.Map{"error": "text is required"})
	}

	author := strings.TrimSpace(req.Author)
	if author == "" {
		// Logged-in posters fall back to their session username.
		author, _ = c.Locals("username").(string)
	}
	if author == "" {
		author = "anonymous"
	}

	if err := s.Append(c.Context(), author, text); err != nil {
		log.Printf("❌ [CHAT] message append failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "message could not be stored"})
	}
	return c.Status(201).JSON(fiber.Map{"posted": true})
}

// GetRecentMessages serves the same slice of the log the SSE replay uses.
func (s *ChatService) GetRecentMessages(c *fiber.Ctx) error {
	msgs, err := s.Store.RecentMessages(c.Context(), ReplayLimit)
	if err != nil {
		log.Printf("❌ [CHAT] history query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "chat history unavailable"})
	}
	return c.JSON(msgs)
}

// replaySession captures a client's connect-time state: the history
// slice to replay and the live channel that started buffering before
// the history query ran, so the transition drops nothing.
type replaySession struct {
	hub      *Hub
	subID    string
	live     <-chan models.ChatMessage
	history  []models.ChatMessage
	replayed map[string]struct{}
}

// openReplay subscribes first, then reads history. Anything published
// in between lands in both; shouldDeliver filters the duplicate out of
// the live stream.
func (s *ChatService) openReplay(ctx context.Context) (*replaySession, error) {
	subID, live := s.Hub.Subscribe()

	history, err := s.Store.RecentMessages(ctx, ReplayLimit)
	if err != nil {
		s.Hub.Unsubscribe(subID)
		return nil, err
	}

	replayed := make(map[string]struct{}, len(history))
	for _, msg := range history {
		replayed[msg.ID] = struct{}{}
	}
	return &replaySession{
		hub:      s.Hub,
		subID:    subID,
		live:     live,
		history:  history,
		replayed: replayed,
	}, nil
}

// shouldDeliver reports whether a live message still needs delivering,
// consuming the replayed-set entry that marks it as already sent.
func (r *replaySession) shouldDeliver(msg models.ChatMessage) bool {
	if _, dup := r.replayed[msg.ID]; dup {
		delete(r.replayed, msg.ID)
		return false
	}
	return true
}

func (r *replaySession) close() {
	r.hub.Unsubscribe(r.subID)
}

// StreamMessages is the live connection: SSE over the fasthttp body
// stream writer. Replay order on connect is strict — the last 50 log
// entries oldest-first, then live delivery.
func (s *ChatService) StreamMessages(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	sess, err := s.openReplay(c.Context())
	if err != nil {
		log.Printf("❌ [CHAT] replay query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "chat history unavailable"})
	}

	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sess.close()

		for _, msg := range sess.history {
			if err := writeSSE(w, msg); err != nil {
				return
			}
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(keepaliveInterval)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-sess.live:
				if !ok {
					return
				}
				if !sess.shouldDeliver(msg) {
					continue
				}
				if err := writeSSE(w, msg); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				// Client closed connection
				return
			}
		}
	})

	return nil
}

func writeSSE(w *bufio.Writer, msg models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
	return err
}
