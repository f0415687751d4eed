// handlers/routes.go
package handlers

import (
	"score-relay-system/middleware"
	"score-relay-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupScoreRoutes(app *fiber.App, scoreService *services.ScoreService, leaderboardService *services.LeaderboardService) {
	// 🔓 Public — the leaderboard is readable without a session
	app.Get("/leaderboard", leaderboardService.GetLeaderboard)

	// 🔐 Score submission requires an authenticated identity
	app.Post("/scores", middleware.RequireUser(), scoreService.SubmitScore)
}

func SetupChatRoutes(app *fiber.App, chatService *services.ChatService) {
	// 🔓 Chat is open: post, read history, or hold a live stream
	app.Post("/chat", chatService.PostMessage)
	app.Get("/chat/messages", chatService.GetRecentMessages)
	app.Get("/chat/stream", chatService.StreamMessages)
}

func SetupAuthRoutes(app *fiber.App, loginService *services.LoginService) {
	app.Get("/auth/login", loginService.Login)
	app.Get("/auth/callback", loginService.Callback)
	app.Get("/auth/me", loginService.Me)
	app.Post("/auth/logout", loginService.Logout)
}
