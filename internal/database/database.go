package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
)

// Service wraps the postgres connection pool used by the stores.
type Service interface {
	Pool() *pgxpool.Pool
	Health() map[string]string
	Close()
}

type service struct {
	pool *pgxpool.Pool
}

var (
	database   = os.Getenv("BLUEPRINT_DB_DATABASE")
	password   = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username   = os.Getenv("BLUEPRINT_DB_USERNAME")
	port       = os.Getenv("BLUEPRINT_DB_PORT")
	host       = os.Getenv("BLUEPRINT_DB_HOST")
	schema     = os.Getenv("BLUEPRINT_DB_SCHEMA")
	dbInstance *service
)

// ConnectionURL builds the postgres URL from the environment.
func ConnectionURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		orDefault(username, "postgres"),
		orDefault(password, "postgres"),
		orDefault(host, "localhost"),
		orDefault(port, "5432"),
		orDefault(database, "crashdb"),
		orDefault(schema, "public"),
	)
}

// New connects to postgres. Returns nil when the database is unreachable;
// the server falls back to in-memory stores in that case.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, ConnectionURL())
	if err != nil {
		log.Printf("[DB] Invalid postgres config: %v", err)
		return nil
	}

	if err := pool.Ping(ctx); err != nil {
		log.Printf("[DB] Postgres connection failed: %v", err)
		log.Println("[DB] Running with in-memory stores")
		pool.Close()
		return nil
	}

	log.Println("[DB] Postgres connected successfully")

	dbInstance = &service{pool: pool}
	return dbInstance
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["total_conns"] = strconv.FormatInt(int64(poolStats.TotalConns()), 10)
	stats["idle_conns"] = strconv.FormatInt(int64(poolStats.IdleConns()), 10)
	stats["acquired_conns"] = strconv.FormatInt(int64(poolStats.AcquiredConns()), 10)

	return stats
}

func (s *service) Close() {
	log.Printf("[DB] Disconnecting from database: %s", orDefault(database, "crashdb"))
	s.pool.Close()
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
