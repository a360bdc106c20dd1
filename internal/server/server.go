package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"chippy/internal/cache"
	"chippy/internal/database"
	"chippy/internal/game"
	"chippy/internal/store"
)

// historyProvider serves the recent-rounds endpoint; redis when available,
// otherwise the primary store.
type historyProvider interface {
	RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error)
}

type FiberServer struct {
	*fiber.App

	db        database.Service
	cache     cache.Service
	accounts  game.AccountStore
	history   historyProvider
	hub       *game.Hub
	scheduler *game.Scheduler
}

// New wires the production dependency graph: postgres-backed stores when the
// database is reachable, in-memory stores otherwise, redis history cache when
// redis is reachable.
func New() *FiberServer {
	db := database.New()
	redisService := cache.New()

	var accounts game.AccountStore
	var rounds []game.RoundStore
	var history historyProvider

	if db != nil {
		pg := store.NewPostgres(db.Pool())
		accounts = pg
		rounds = append(rounds, pg)
		history = pg
	} else {
		mem := store.NewMemory()
		accounts = mem
		rounds = append(rounds, mem)
		history = mem
	}

	if redisService != nil {
		rounds = append(rounds, redisService)
		history = redisService
	}

	hub := game.NewHub()
	ledger := game.NewLedger(accounts)
	scheduler := game.NewScheduler(game.DefaultConfig(), ledger, store.FanoutRounds(rounds), game.NewFairSource(), hub)

	server := newServer(db, redisService, accounts, history, hub, scheduler)

	go hub.Run()
	go scheduler.Run()

	log.Println("[SERVER] Hub and round scheduler started")

	return server
}

// newServer builds the fiber app around already-constructed dependencies.
// Tests call this directly with in-memory stores.
func newServer(db database.Service, redisService cache.Service, accounts game.AccountStore, history historyProvider, hub *game.Hub, scheduler *game.Scheduler) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "chippy",
			AppName:       "chippy",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:        db,
		cache:     redisService,
		accounts:  accounts,
		history:   history,
		hub:       hub,
		scheduler: scheduler,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	return server
}

// Shutdown stops the scheduler and closes connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
