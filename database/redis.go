package database

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// Redis holds the shared client backing the application draft store. It is
// nil when REDIS_ADDR is not configured; callers must treat that as "draft
// storage unavailable", not as a startup failure.
var Redis *redis.Client

// ConnectRedis initializes the shared Redis client if REDIS_ADDR is set.
func ConnectRedis() {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		log.Println("[redis] REDIS_ADDR not set, draft storage disabled")
		return
	}

	opts := &redis.Options{Addr: addr}
	if p := os.Getenv("REDIS_PASS"); p != "" {
		opts.Password = p
	}
	if s := os.Getenv("REDIS_DB"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			opts.DB = n
		}
	}

	rc := redis.NewClient(opts)
	if err := rc.Ping(context.Background()).Err(); err != nil {
		log.Printf("[redis] ping failed, draft storage disabled: %v", err)
		return
	}
	Redis = rc
	log.Printf("[redis] connected to %s", addr)
}
