package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"chippy/internal/game"
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

	api.Get("/game/state", s.gameStateHandler)
	api.Get("/game/history", s.gameHistoryHandler)
	api.Get("/fair/verify", s.fairVerifyHandler)
	api.Post("/users", s.createUserHandler)
	api.Get("/users/:userId/balance", s.userBalanceHandler)

	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.ClientCount(),
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

// gameStateHandler returns the scheduler's snapshot of the current round.
func (s *FiberServer) gameStateHandler(c *fiber.Ctx) error {
	snapshot := s.scheduler.Snapshot()
	if snapshot == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "No active game round",
		})
	}
	return c.JSON(snapshot)
}

func (s *FiberServer) gameHistoryHandler(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	rounds, err := s.history.RecentRounds(c.Context(), limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load round history",
		})
	}

	return c.JSON(fiber.Map{
		"rounds": rounds,
	})
}

// fairVerifyHandler recomputes a crash point from a revealed seed pair so
// players can audit finished rounds.
func (s *FiberServer) fairVerifyHandler(c *fiber.Ctx) error {
	serverSeed := c.Query("server_seed")
	clientSeed := c.Query("client_seed")
	nonce, err := strconv.Atoi(c.Query("nonce", "0"))
	if serverSeed == "" || clientSeed == "" || err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "server_seed, client_seed and nonce are required",
		})
	}

	crashPoint := game.CrashPointFromSeeds(serverSeed, clientSeed, nonce)

	result := fiber.Map{
		"crash_point": crashPoint,
		"commitment":  game.SeedCommitment(serverSeed),
	}
	if claimed := c.Query("claimed"); claimed != "" {
		value, err := strconv.ParseFloat(claimed, 64)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{
				"error": "claimed must be a number",
			})
		}
		result["verified"] = game.VerifyCrashPoint(serverSeed, clientSeed, nonce, value)
	}

	return c.JSON(result)
}

func (s *FiberServer) createUserHandler(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if body.Username == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Username is required.",
		})
	}

	account, err := s.accounts.Create(c.Context(), body.Username)
	if errors.Is(err, game.ErrUsernameTaken) {
		return c.Status(409).JSON(fiber.Map{
			"error": "Username already exists.",
		})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to create user.",
		})
	}

	return c.JSON(fiber.Map{
		"userId":   account.ID,
		"username": account.Username,
		"balances": account.Balances,
	})
}

func (s *FiberServer) userBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	account, err := s.accounts.Find(c.Context(), userID)
	if errors.Is(err, game.ErrUserNotFound) {
		return c.Status(404).JSON(fiber.Map{
			"error": "User not found.",
		})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load balance",
		})
	}

	return c.JSON(fiber.Map{
		"userId":   account.ID,
		"username": account.Username,
		"balances": account.Balances,
	})
}
