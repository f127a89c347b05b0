package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Post("/auth", s.authHandler)

	api.Get("/seed/:playerId", s.getSeedHandler)
	api.Post("/seed/rotate", s.rotateSeedHandler)

	api.Post("/dice/roll", s.diceRollHandler)

	// recent must be registered before the player route
	api.Get("/bets/recent", s.recentBetsHandler)
	api.Get("/bets/player/:playerId", s.playerBetsHandler)

	api.Post("/verify", s.verifyHandler)

	api.Get("/stats/house", s.houseStatsHandler)
	api.Get("/stats/player/:playerId", s.playerStatsHandler)

	s.App.Get("/ws", websocket.New(s.betFeedWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"feed": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}
