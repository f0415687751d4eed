package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"score-relay-system/handlers"
	"score-relay-system/middleware"
	"score-relay-system/services"
	"score-relay-system/storage"
	"score-relay-system/utils"
	"score-relay-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
)

func openStore() (storage.Store, string) {
	backend := strings.ToLower(os.Getenv("STORAGE_BACKEND"))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			log.Fatal("DATABASE_URL environment variable not set")
		}
		store, err := storage.OpenPostgres(dsn)
		if err != nil {
			log.Fatal("failed to open postgres store:", err)
		}
		return store, backend
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "./relay.db"
		}
		store, err := storage.OpenSQLite(path)
		if err != nil {
			log.Fatal("failed to open sqlite store:", err)
		}
		return store, backend
	case "valkey":
		addr := os.Getenv("VALKEY_ADDR")
		if addr == "" {
			log.Fatal("VALKEY_ADDR environment variable not set")
		}
		store, err := storage.OpenValkey(addr)
		if err != nil {
			log.Fatal("failed to open valkey store:", err)
		}
		return store, backend
	default:
		log.Fatalf("unknown STORAGE_BACKEND %q (want postgres, sqlite, or valkey)", backend)
		return nil, backend
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "score-relay-system",
	})

	// CORS configuration; origins come from the environment
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	store, backendName := openStore()

	hub := services.NewHub()
	sessions := middleware.NewSessionRegistry()

	leaderboardService := services.NewLeaderboardService(store)
	chatService := services.NewChatService(store, hub)
	scoreService := services.NewScoreService(store, leaderboardService, chatService)
	loginService := services.NewLoginServiceFromEnv(store, sessions)

	app.Use(middleware.UserContextMiddleware(sessions))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if utils.R2Configured() {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		mirrorWorker := workers.NewAvatarMirrorWorker(store)
		mirrorWorker.Start(ctx)
	} else {
		log.Println("⚠️  R2 not configured — avatars stay on the provider CDN")
	}

	services.StartRecapScheduler(leaderboardService, chatService)

	handlers.SetupAuthRoutes(app, loginService)
	handlers.SetupScoreRoutes(app, scoreService, leaderboardService)
	handlers.SetupChatRoutes(app, chatService)

	if err := os.MkdirAll("./public", os.ModePerm); err != nil {
		log.Fatal("failed to ensure public dir:", err)
	}
	app.Static("/", "./public")

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Storage backend: %s", backendName)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
