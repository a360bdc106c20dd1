package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"chippy/internal/game"
)

const (
	keyHistory    = "crash:history"
	historyMaxLen = 100
	historyTTL    = 24 * time.Hour
)

// Service is the redis-backed round history cache. It doubles as a
// game.RoundStore so the scheduler's archive fan-out feeds it directly.
type Service interface {
	GetClient() *redis.Client
	Save(ctx context.Context, rec game.RoundRecord) error
	RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error)
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

// New connects to redis. Returns nil when redis is unreachable; the server
// runs without the history cache in that case.
func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without round history cache")
		return nil
	}

	log.Println("[CACHE] Redis connected successfully")

	cacheInstance = &service{client: client}
	return cacheInstance
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

// Save pushes the round onto the trimmed history list.
func (s *service) Save(ctx context.Context, rec game.RoundRecord) error {
	summary := game.RoundSummary{
		RoundID:    rec.ID,
		CrashPoint: rec.CrashPoint,
		CrashedAt:  rec.CrashedAt,
		ServerSeed: rec.ServerSeed,
		ClientSeed: rec.ClientSeed,
		Nonce:      rec.Nonce,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal round summary: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, keyHistory, data)
	pipe.LTrim(ctx, keyHistory, 0, historyMaxLen-1)
	pipe.Expire(ctx, keyHistory, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push round history: %w", err)
	}

	return nil
}

func (s *service) RecentRounds(ctx context.Context, limit int) ([]game.RoundSummary, error) {
	if limit <= 0 || limit > historyMaxLen {
		limit = historyMaxLen
	}

	entries, err := s.client.LRange(ctx, keyHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read round history: %w", err)
	}

	out := make([]game.RoundSummary, 0, len(entries))
	for _, entry := range entries {
		var summary game.RoundSummary
		if json.Unmarshal([]byte(entry), &summary) == nil {
			out = append(out, summary)
		}
	}

	return out, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	return s.client.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
