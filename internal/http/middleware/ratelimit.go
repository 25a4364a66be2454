// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RateGate, a lightweight, in-memory token-bucket rate
// limiter with named actions, per-identity buckets, and opportunistic garbage
// collection. Each mutating action (idea creation, vote casting) carries its
// own quota, expressed as "N requests per window"; the bucket refills at
// N/window so the quota holds over any window-length interval in the common
// case while still allowing the full quota as an initial burst.
//
// Features:
//   - Named actions with independent quotas
//   - Per-(action, identity) token buckets using golang.org/x/time/rate
//   - Pluggable identity function (member email or client IP)
//   - Best-effort cleanup of idle buckets to bound memory
//   - Seamless bypass for idempotent replays (when paired with VoteReceiptValidator)
//
// Notes:
//   - This limiter is process-local. For horizontally scaled deployments,
//     prefer a distributed limiter (e.g., Redis-backed) to enforce global limits.
//   - The limiter is intended for edge-level abuse control;
//     it is not an authorization mechanism.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the identity used to key a rate-limit bucket.
//
// Implementations should return a stable string for the duration of a request
// (e.g., "email:<addr>" or "ip:<addr>"). The returned key is combined with
// the action name to look up the corresponding token bucket.
type KeyFunc func(*gin.Context) string

// KeyByClientIP returns a KeyFunc that identifies callers by client IP.
// Public endpoints have no authenticated user, so the IP is the only stable
// identity available before the request body is parsed.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// Quota describes one action's budget: Limit requests per Window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// visitor holds a single rate limiter and the last time it was seen.
// Used to opportunistically evict idle buckets.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateGate caps the rate of named mutating actions per identity.
//
// Buckets are created on demand and stored in an internal map guarded by a
// mutex. Idle buckets are evicted after a TTL via opportunistic cleanup during
// lookups to keep memory usage bounded. Construct one RateGate at process
// start and share it across handlers; the zero value is not usable.
//
// This type is safe for concurrent use.
type RateGate struct {
	quotas map[string]Quota
	keyFn  KeyFunc

	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateGate constructs a RateGate from per-action quotas, keyed by keyFn.
//
//   - quotas: action name -> budget. Limits <= 0 are coerced to 1; windows
//     <= 0 are coerced to one second.
//   - keyFn:  function that maps a request to a bucket identity.
//
// Actions absent from quotas are not limited.
func NewRateGate(quotas map[string]Quota, keyFn KeyFunc) *RateGate {
	qs := make(map[string]Quota, len(quotas))
	for action, q := range quotas {
		if q.Limit <= 0 {
			q.Limit = 1
		}
		if q.Window <= 0 {
			q.Window = time.Second
		}
		qs[action] = q
	}
	return &RateGate{
		quotas:   qs,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute, // evict idle entries after TTL
	}
}

// Allow reports whether identity may perform action now, consuming one token
// when it may. The check and the consumption are a single atomic step on the
// underlying bucket, so concurrent callers cannot overdraw the quota.
func (rg *RateGate) Allow(action, identity string) bool {
	q, ok := rg.quotas[action]
	if !ok {
		return true
	}
	lim := rg.getVisitor(action+"|"+identity, q)
	return lim.Allow()
}

// getVisitor returns (and updates) the limiter for key, creating it if absent.
// It also performs opportunistic GC of idle entries after ~5000 lookups.
//
// IMPORTANT: Run GC *before* touching the requested visitor so an "old" bucket
// can be evicted even when it's the one being fetched.
func (rg *RateGate) getVisitor(key string, q Quota) *rate.Limiter {
	now := time.Now()

	rg.mu.Lock()
	// Opportunistic cleanup after a threshold of lookups, then reset the counter.
	// Do this BEFORE updating/creating the requested visitor to avoid
	// refreshing an "old" entry that should be evicted.
	rg.cleanupN++
	if rg.cleanupN >= 5000 {
		for k, vv := range rg.visitors {
			// Evict if idle for >= TTL (robust boundary check)
			if now.Sub(vv.lastSeen) >= rg.ttl {
				delete(rg.visitors, k)
			}
		}
		rg.cleanupN = 0
	}

	// Fetch or create this visitor.
	if v, ok := rg.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rg.mu.Unlock()
		return lim
	}

	// Refill at quota/window with the full quota as burst: the Nth call
	// inside a fresh window succeeds, the (N+1)th fails.
	lim := rate.NewLimiter(rate.Limit(float64(q.Limit)/q.Window.Seconds()), q.Limit)
	rg.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rg.mu.Unlock()
	return lim
}

// IsRateBypass reports whether VoteReceiptValidator marked this request for
// rate-limit bypass (i.e., it is a replay of a previously completed request).
//
// When true, Handler() will skip limiting so replays are served without
// consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass) // set by VoteReceiptValidator
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces the named action's quota.
// Attach it to the specific route group or endpoint that performs the action.
//
// Behavior:
//   - If IsRateBypass(c) is true (idempotent replay), limiting is skipped.
//   - Otherwise, the request consumes a token from the (action, identity)
//     bucket. If allowed, the request proceeds; if not, a 429 response is
//     returned with a compact JSON body and a Retry-After hint sized to the
//     action's refill interval.
//
// The middleware emits:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "<uuid>",
//	  "code":       "too_many_requests",
//	  "message":    "rate limit exceeded, retry later"
//	}
func (rg *RateGate) Handler(action string) gin.HandlerFunc {
	retryAfter := "1"
	if q, ok := rg.quotas[action]; ok && q.Limit > 0 {
		secs := int(q.Window.Seconds()) / q.Limit
		if secs < 1 {
			secs = 1
		}
		retryAfter = strconv.Itoa(secs)
	}

	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rg.Allow(action, rg.keyFn(c)) {
			c.Next()
			return
		}

		c.Header("Retry-After", retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded, retry later",
		})
	}
}
