package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/config"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
)

// RateLimitPolicy bounds how many requests one identifier may make in a
// trailing window.
type RateLimitPolicy struct {
	// Name partitions identifiers so two policies never share a window.
	Name         string
	MaxRequests  int
	Window       time.Duration
	ErrorMessage string
}

var (
	MessageCreationPolicy = RateLimitPolicy{
		Name:         "message",
		MaxRequests:  config.MessageCreationMaxRequests,
		Window:       config.MessageCreationWindow,
		ErrorMessage: "Too many messages. Please wait a moment before sending more.",
	}
	SessionCreationPolicy = RateLimitPolicy{
		Name:         "session",
		MaxRequests:  config.SessionCreationMaxRequests,
		Window:       config.SessionCreationWindow,
		ErrorMessage: "Too many session creation attempts. Please try again later.",
	}
	PublicIPPolicy = RateLimitPolicy{
		Name:         "ip",
		MaxRequests:  config.PublicIPRateLimitPerMin,
		Window:       time.Minute,
		ErrorMessage: "Too many requests. Please try again later.",
	}
)

// RateLimiter admits or rejects a request for identifier under policy. A
// rejection is an *errors.AppError with code RATE_LIMIT_EXCEEDED and a
// positive RetryAfter. Rejected requests are not recorded.
type RateLimiter interface {
	Check(ctx context.Context, identifier string, policy RateLimitPolicy) error
}

// retryAfterSeconds rounds the remaining wait up to whole seconds, never below one.
func retryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func policyKey(policy RateLimitPolicy, identifier string) string {
	return policy.Name + ":" + identifier
}

// MemoryRateLimiter keeps sliding windows in process memory. State is lost
// on restart and not shared between instances.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	store     map[string][]time.Time
	now       func() time.Time
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
	stopOnce  sync.Once
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		store:     make(map[string][]time.Time),
		now:       time.Now,
		retention: config.RateLimitRetention,
		interval:  config.RateLimitSweepInterval,
		done:      make(chan struct{}),
	}
}

func (rl *MemoryRateLimiter) Check(ctx context.Context, identifier string, policy RateLimitPolicy) error {
	key := policyKey(policy, identifier)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	timestamps := rl.store[key]

	// timestamps are appended in order, so the recent ones are a suffix
	start := 0
	for start < len(timestamps) && now.Sub(timestamps[start]) >= policy.Window {
		start++
	}
	recent := timestamps[start:]

	if len(recent) >= policy.MaxRequests {
		rl.store[key] = recent
		// a policy that admits nothing has no oldest entry to wait on
		wait := policy.Window
		if len(recent) > 0 {
			wait = recent[0].Add(policy.Window).Sub(now)
		}
		retryAfter := retryAfterSeconds(wait)
		return apperrors.RateLimitExceeded(policy.ErrorMessage, retryAfter)
	}

	rl.store[key] = append(recent, now)
	return nil
}

// Sweep drops timestamps older than the retention period and forgets
// identifiers with none left.
func (rl *MemoryRateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, timestamps := range rl.store {
		start := 0
		for start < len(timestamps) && now.Sub(timestamps[start]) >= rl.retention {
			start++
		}
		if start == len(timestamps) {
			delete(rl.store, key)
			removed++
			continue
		}
		rl.store[key] = timestamps[start:]
	}
	return removed
}

func (rl *MemoryRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.store)
}

func (rl *MemoryRateLimiter) Start() {
	go func() {
		ticker := time.NewTicker(rl.interval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.done:
				return
			case <-ticker.C:
				if removed := rl.Sweep(); removed > 0 {
					log.Debug().Int("removed", removed).Msg("rate limiter sweep")
				}
			}
		}
	}()
	log.Info().Dur("interval", rl.interval).Msg("rate limiter sweep started")
}

func (rl *MemoryRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// rateLimitScript is a Lua script for sliding window rate limiting.
// Scores are milliseconds. Returns {allowed, retryAfterMs}.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local retryAfter = window
    if #oldest >= 2 then
        retryAfter = tonumber(oldest[2]) + window - now
    end
    return {0, retryAfter}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 1000)

return {1, 0}
`)

// RedisRateLimiter shares windows across instances through a sorted set per key.
type RedisRateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, now: time.Now}
}

func (rl *RedisRateLimiter) Check(ctx context.Context, identifier string, policy RateLimitPolicy) error {
	now := rl.now()
	key := fmt.Sprintf("ratelimit:%s", policyKey(policy, identifier))
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{key},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.MaxRequests,
		member,
	).Int64Slice()

	if err != nil {
		log.Warn().
			Err(err).
			Str("policy", policy.Name).
			Msg("rate limit check failed, denying request for safety")
		return apperrors.RateLimitExceeded(policy.ErrorMessage, retryAfterSeconds(policy.Window))
	}

	if len(result) != 2 {
		log.Warn().Str("policy", policy.Name).Msg("unexpected rate limit result, denying request for safety")
		return apperrors.RateLimitExceeded(policy.ErrorMessage, retryAfterSeconds(policy.Window))
	}

	if result[0] == 1 {
		return nil
	}
	return apperrors.RateLimitExceeded(policy.ErrorMessage, retryAfterSeconds(time.Duration(result[1])*time.Millisecond))
}
