package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"fairdice/internal/game"
)

// errorJSON maps the settlement core's error taxonomy to HTTP responses.
// Seed-lifecycle errors carry an actionable hint instead of a bare failure.
func errorJSON(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, game.ErrInvalidWager) || errors.Is(err, game.ErrInvalidTarget):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, game.ErrNoActiveSeed) || errors.Is(err, game.ErrSeedNotActive):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  err.Error(),
			"action": "rotate_seed",
		})
	case errors.Is(err, game.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		log.Printf("[SERVER] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}

// Auth and seed lifecycle handlers

func (s *FiberServer) authHandler(c *fiber.Ctx) error {
	var body struct {
		WalletAddress string `json:"wallet_address"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if body.WalletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Wallet address is required",
		})
	}

	player, seed, err := s.svc.Authenticate(c.Context(), body.WalletAddress)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(fiber.Map{
		"player":      player,
		"active_seed": seed,
	})
}

func (s *FiberServer) getSeedHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	seed, err := s.svc.ActiveSeed(c.Context(), playerID)
	if errors.Is(err, game.ErrNoActiveSeed) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  err.Error(),
			"action": "rotate_seed",
		})
	}
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(seed)
}

func (s *FiberServer) rotateSeedHandler(c *fiber.Ctx) error {
	var req game.RotateSeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	resp, err := s.svc.RotateSeed(c.Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(resp)
}

// Betting handlers

func (s *FiberServer) diceRollHandler(c *fiber.Ctx) error {
	var req game.DiceRollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	resp, err := s.svc.PlaceBet(c.Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(resp)
}

func (s *FiberServer) recentBetsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	return c.JSON(s.svc.RecentBets(c.Context(), limit))
}

func (s *FiberServer) playerBetsHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	limit := c.QueryInt("limit", 50)
	return c.JSON(s.svc.PlayerBets(c.Context(), playerID, limit))
}

// Verification handler

func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	var req game.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ServerSeed == "" || req.ServerSeedHash == "" || req.ClientSeed == "" || req.Nonce < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "server_seed, server_seed_hash, client_seed and a non-negative nonce are required",
		})
	}

	return c.JSON(s.svc.Verify(req))
}

// Stats handlers

func (s *FiberServer) houseStatsHandler(c *fiber.Ctx) error {
	return c.JSON(s.svc.HouseStats(c.Context()))
}

func (s *FiberServer) playerStatsHandler(c *fiber.Ctx) error {
	playerID := c.Params("playerId")
	if playerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	player, err := s.svc.PlayerStats(c.Context(), playerID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(player)
}

// betFeedWebSocketHandler streams settled bets to connected clients.
func (s *FiberServer) betFeedWebSocketHandler(conn *websocket.Conn) {
	playerID := conn.Query("player_id", "anonymous")

	log.Printf("[WS] New feed connection from player: %s", playerID)

	client := s.hub.RegisterClient(conn, playerID)
	client.SendRecentBets(s.svc.RecentBets(context.Background(), 20))

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for player %s: %v", playerID, err)
			s.hub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg map[string]interface{}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}

		if clientMsg["type"] == "ping" {
			pong, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pong)
		}
	}
}
