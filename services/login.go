package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"

	"score-relay-system/middleware"
	"score-relay-system/models"
	"score-relay-system/storage"
	"score-relay-system/utils"
)

const stateCookieName = "relay_oauth_state"

// LoginService completes the social-login handshake. The ranking core
// only ever consumes its output: one (externalID, username, displayName,
// avatarURL) tuple per session establishment, upserted into the
// identity directory.
type LoginService struct {
	Store       storage.Store
	Sessions    *middleware.SessionRegistry
	OAuth       *oauth2.Config
	UserInfoURL string
}

// NewLoginServiceFromEnv builds the provider config. All OAUTH_* vars
// are required; the service cannot gate logins without them.
func NewLoginServiceFromEnv(store storage.Store, sessions *middleware.SessionRegistry) *LoginService {
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			log.Fatalf("❌ %s environment variable not set", key)
		}
		return v
	}

	scopes := []string{"read:user"}
	if raw := os.Getenv("OAUTH_SCOPES"); raw != "" {
		scopes = nil
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				scopes = append(scopes, s)
			}
		}
	}

	return &LoginService{
		Store:    store,
		Sessions: sessions,
		OAuth: &oauth2.Config{
			ClientID:     required("OAUTH_CLIENT_ID"),
			ClientSecret: required("OAUTH_CLIENT_SECRET"),
			RedirectURL:  required("OAUTH_REDIRECT_URL"),
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  required("OAUTH_AUTH_URL"),
				TokenURL: required("OAUTH_TOKEN_URL"),
			},
		},
		UserInfoURL: required("OAUTH_USERINFO_URL"),
	}
}

// Login redirects the browser to the provider's consent page.
func (s *LoginService) Login(c *fiber.Ctx) error {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	state := hex.EncodeToString(buf)

	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		HTTPOnly: true,
		Expires:  time.Now().Add(10 * time.Minute),
	})
	return c.Redirect(s.OAuth.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// providerProfile is the provider's userinfo shape (GitHub-compatible).
type providerProfile struct {
	ID        json.Number `json:"id"`
	Login     string      `json:"login"`
	Name      string      `json:"name"`
	AvatarURL string      `json:"avatar_url"`
	HTMLURL   string      `json:"html_url"`
}

// Callback finishes the handshake: exchange the code, fetch the profile,
// upsert the identity (idempotent, last-write-wins), issue a session.
func (s *LoginService) Callback(c *fiber.Ctx) error {
	if errParam := c.Query("error"); errParam != "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login denied by provider"})
	}
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookieName) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "state mismatch"})
	}
	code := c.Query("code")
	if code == "" {
		return c.Status(400).JSON(fiber.Map{"error": "missing code"})
	}

	token, err := s.OAuth.Exchange(c.Context(), code)
	if err != nil {
		log.Printf("❌ [LOGIN] code exchange failed: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login failed"})
	}

	profile, err := s.fetchProfile(token)
	if err != nil {
		log.Printf("❌ [LOGIN] userinfo fetch failed: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "login failed"})
	}

	externalID := profile.ID.String()
	username := profile.Login
	if username == "" {
		username = externalID
	}

	identity := models.Identity{
		ExternalID:  externalID,
		Username:    username,
		DisplayName: profile.Name,
		AvatarURL:   profile.AvatarURL,
		ProfileLink: utils.ProfileLink(username),
	}
	if err := s.Store.UpsertIdentity(c.Context(), identity); err != nil {
		log.Printf("❌ [LOGIN] identity upsert failed for %s: %v", externalID, err)
		return c.Status(500).JSON(fiber.Map{"error": "storage unavailable"})
	}

	sessionToken := s.Sessions.Issue(externalID, username)
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionToken,
		HTTPOnly: true,
		Expires:  time.Now().Add(24 * time.Hour),
	})

	log.Printf("✅ [LOGIN] %s (%s) logged in", username, externalID)
	return c.Redirect("/", fiber.StatusTemporaryRedirect)
}

func (s *LoginService) fetchProfile(token *oauth2.Token) (*providerProfile, error) {
	client := s.OAuth.Client(context.Background(), token)
	client.Timeout = 10 * time.Second

	resp, err := client.Get(s.UserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var profile providerProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, err
	}
	if profile.ID.String() == "" {
		return nil, errors.New("userinfo response missing id")
	}
	return &profile, nil
}

// Me returns the current session's stored profile.
func (s *LoginService) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not logged in"})
	}
	identity, err := s.Store.GetIdentity(c.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("🚨 [LOGIN] integrity violation: session identity %s missing from directory", userID)
			return c.Status(500).JSON(fiber.Map{"error": "internal data error"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "storage unavailable"})
	}
	return c.JSON(identity)
}

// Logout drops the session.
func (s *LoginService) Logout(c *fiber.Ctx) error {
	if token := c.Cookies(middleware.SessionCookieName); token != "" {
		s.Sessions.Revoke(token)
	}
	c.ClearCookie(middleware.SessionCookieName)
	return c.JSON(fiber.Map{"logged_out": true})
}
