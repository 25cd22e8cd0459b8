package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
	"github.com/66gu1/authsession/internal/infrastructure/logger"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	Rate   int           `mapstructure:"rate" json:"rate"`
	Burst  int           `mapstructure:"burst" json:"burst"`
	Period time.Duration `mapstructure:"period" json:"period"`
}

func (c RateLimitConfig) limit() redis_rate.Limit {
	return redis_rate.Limit{Rate: c.Rate, Burst: c.Burst, Period: c.Period}
}

// RateLimiter limits requests per client IP. With a redis client the window is
// shared across instances; without one, or while redis is failing, each
// instance counts locally.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	limit    redis_rate.Limit
	prefix   string
}

func NewRateLimiter(rdb *redis.Client, name string, cfg RateLimitConfig) (*RateLimiter, error) {
	if cfg.Rate <= 0 || cfg.Burst <= 0 || cfg.Period <= 0 {
		return nil, fmt.Errorf("httpx.NewRateLimiter: rate, burst and period must be positive")
	}

	rl := &RateLimiter{
		fallback: newLocalLimiter(time.Now),
		limit:    cfg.limit(),
		prefix:   "ratelimit:" + name + ":",
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}

	return rl, nil
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		res := rl.allow(ctx, rl.prefix+clientIP(r))
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			ReturnError(ctx, w, apperr.ErrTooManyRequests())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) *redis_rate.Result {
	if rl.limiter != nil {
		res, err := rl.limiter.Allow(ctx, key, rl.limit)
		if err == nil {
			return res
		}
		logger.Warn(ctx, err).Str("key", key).Msg("httpx.RateLimiter.allow: redis limiter failed, using local limiter")
	}

	return rl.fallback.allow(key, rl.limit)
}

// clientIP expects chi's RealIP middleware to have resolved RemoteAddr.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

const localEntryTTL = 10 * time.Minute

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

type localLimiter struct {
	limiters  sync.Map
	lastSweep atomic.Int64
	now       func() time.Time
}

func newLocalLimiter(now func() time.Time) *localLimiter {
	l := &localLimiter{now: now}
	l.lastSweep.Store(now().Unix())
	return l
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	now := l.now()
	l.sweep(now)

	perSec := float64(limit.Rate) / limit.Period.Seconds()
	v, loaded := l.limiters.Load(key)
	if !loaded {
		v, _ = l.limiters.LoadOrStore(key, &limiterEntry{limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst)})
	}
	entry := v.(*limiterEntry)
	entry.lastAccess.Store(now.Unix())

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}
	if entry.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / perSec)
	}
	res.Remaining = max(int(entry.limiter.TokensAt(now)), 0)
	res.ResetAfter = time.Duration(float64(time.Second) / perSec)

	return res
}

// sweep drops idle entries at most once per localEntryTTL.
func (l *localLimiter) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.Unix()-last < int64(localEntryTTL/time.Second) || !l.lastSweep.CompareAndSwap(last, now.Unix()) {
		return
	}

	cutoff := now.Add(-localEntryTTL).Unix()
	l.limiters.Range(func(key, value any) bool {
		if value.(*limiterEntry).lastAccess.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}
