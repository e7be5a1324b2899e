package middleware

import (
	"net/http"
	"strconv"
	"time"

	"cinema-ticketing/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Token bucket in a single Lua script so refill and take are atomic across
// instances. State is a Redis hash per caller.
var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// RateLimit throttles per caller with a Redis token bucket. Disabled config
// or a nil client yields a pass-through; Redis errors fail open so the
// limiter never takes the booking path down with it.
func RateLimit(cfg utils.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled || rdb == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(r)

			args := []interface{}{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := limiterScript.Run(r.Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				logger.Warn("Rate limiter redis error, failing open",
					zap.Error(err),
					zap.String("key", key),
				)
				next.ServeHTTP(w, r)
				return
			}

			res, ok := vals.([]interface{})
			if !ok || len(res) != 3 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, _ := res[0].(int64)
			remaining, _ := res[1].(int64)
			retryMs, _ := res[2].(int64)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if allowed != 1 {
				retryAfter := int((time.Duration(retryMs) * time.Millisecond).Round(time.Second) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				utils.ResponseTooManyRequests(w, "Too many requests, slow down", retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateKey buckets by authenticated user when present, else by remote IP.
func rateKey(r *http.Request) string {
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return "ratelimit:user:" + userID.String()
	}
	return "ratelimit:ip:" + r.RemoteAddr
}
