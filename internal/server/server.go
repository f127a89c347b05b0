package server

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"fairdice/internal/cache"
	"fairdice/internal/database"
	"fairdice/internal/game"
	"fairdice/internal/storage"
)

type FiberServer struct {
	*fiber.App

	db    database.Service
	cache cache.Service
	svc   *game.Service
	hub   *game.Hub
}

func New() *FiberServer {
	// Postgres holds all committed state; Redis only mirrors the bet feed
	// and is optional.
	db := database.New()
	redisService := cache.New()
	if redisService == nil {
		log.Println("[SERVER] Bet feed cache disabled")
	}

	hub := game.NewHub()

	var feed game.BetFeed
	if redisService != nil {
		feed = redisService
	}
	svc := game.NewService(storage.NewPostgres(db.DB()), feed, hub, configFromEnv())

	server := newServer(db, redisService, svc, hub)

	go hub.Run()

	log.Println("[SERVER] Settlement core ready")

	return server
}

func newServer(db database.Service, redisService cache.Service, svc *game.Service, hub *game.Hub) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "fairdice",
			AppName:       "fairdice",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:    db,
		cache: redisService,
		svc:   svc,
		hub:   hub,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	return server
}

func configFromEnv() game.Config {
	cfg := game.DefaultConfig()
	if v, err := strconv.ParseFloat(os.Getenv("DICE_HOUSE_EDGE_PCT"), 64); err == nil && v >= 0 && v < 100 {
		cfg.HouseEdgePct = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("DICE_REVENUE_SHARE"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.RevenueShareFrac = v
	}
	return cfg
}

// Shutdown closes the server's external connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
