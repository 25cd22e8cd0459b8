package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/66gu1/authsession/config"
	"github.com/66gu1/authsession/internal/app/session"
	sessiongorm "github.com/66gu1/authsession/internal/app/session/repo/gorm"
	sessionmemory "github.com/66gu1/authsession/internal/app/session/repo/memory"
	sessionredis "github.com/66gu1/authsession/internal/app/session/repo/redis"
	"github.com/66gu1/authsession/internal/infrastructure/httpx"
	"github.com/66gu1/authsession/internal/infrastructure/redisx"
	"github.com/66gu1/authsession/internal/infrastructure/system"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// newSessionStore builds the configured backend. The redis client is returned
// for the rate limiters and is nil unless the redis backend is selected.
func newSessionStore(ctx context.Context, cfg config.Config, gdb *gorm.DB, timeGen *system.TimeGenerator) (session.Store, *redis.Client, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := sessiongorm.NewRepository(gdb, timeGen)
		if err != nil {
			return nil, nil, fmt.Errorf("newSessionStore: %w", err)
		}
		return store, nil, nil
	case config.StoreRedis:
		rdb, err := redisx.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("newSessionStore: %w", err)
		}
		store, err := sessionredis.NewRepository(rdb, timeGen, cfg.RedisSession)
		if err != nil {
			_ = rdb.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("newSessionStore: %w", err)
		}
		return store, rdb, nil
	case config.StoreMemory:
		log.Warn().Msg("using in-memory session store, sessions are lost on restart")
		return sessionmemory.NewRepository(timeGen), nil, nil
	}

	return nil, nil, fmt.Errorf("newSessionStore: unknown store %q", cfg.Store)
}

type rateLimiters struct {
	login   func(http.Handler) http.Handler
	refresh func(http.Handler) http.Handler
}

func newRateLimiters(cfg config.RateLimitConfig, rdb *redis.Client) (rateLimiters, error) {
	passthrough := func(next http.Handler) http.Handler { return next }
	if !cfg.Enabled {
		return rateLimiters{login: passthrough, refresh: passthrough}, nil
	}

	login, err := httpx.NewRateLimiter(rdb, "login", cfg.Login)
	if err != nil {
		return rateLimiters{}, fmt.Errorf("newRateLimiters: login: %w", err)
	}
	refresh, err := httpx.NewRateLimiter(rdb, "refresh", cfg.Refresh)
	if err != nil {
		return rateLimiters{}, fmt.Errorf("newRateLimiters: refresh: %w", err)
	}

	return rateLimiters{login: login.Handler, refresh: refresh.Handler}, nil
}

type purger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// runPurge deletes long-expired sessions every interval until ctx is done.
func runPurge(ctx context.Context, p purger, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx, retention)
			if err != nil {
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("expired sessions purged")
			}
		}
	}
}
