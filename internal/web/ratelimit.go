package web

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimitMaxClients caps the limiter map. Past this the map is reset
// wholesale rather than tracked per last access.
const rateLimitMaxClients = 10000

// rateLimitExempt paths skip limiting entirely.
var rateLimitExempt = []string{"/health", "/metrics", "/static", "/assets", "/favicon"}

// RateLimiter throttles clients by IP with two budgets: one for all
// traffic and a tighter one for ticket checks, which cost provider
// fetches on a cache miss.
type RateLimiter struct {
	mu         sync.RWMutex
	overall    map[string]*rate.Limiter
	check      map[string]*rate.Limiter
	rate       rate.Limit
	burst      int
	checkRate  rate.Limit
	checkBurst int
}

// NewRateLimiter creates a limiter with the given overall budget. The
// check budget is half of it, minimum one request per second.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	checkRPS := rps / 2
	if checkRPS < 1 {
		checkRPS = 1
	}
	checkBurst := burst / 2
	if checkBurst < 1 {
		checkBurst = 1
	}

	return &RateLimiter{
		overall:    make(map[string]*rate.Limiter),
		check:      make(map[string]*rate.Limiter),
		rate:       rate.Limit(rps),
		burst:      burst,
		checkRate:  rate.Limit(checkRPS),
		checkBurst: checkBurst,
	}
}

func (rl *RateLimiter) getLimiter(limiters map[string]*rate.Limiter, key string, limit rate.Limit, burst int) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := limiters[key]
	rl.mu.RUnlock()
	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists = limiters[key]; exists {
		return limiter
	}
	if len(limiters) >= rateLimitMaxClients {
		for k := range limiters {
			delete(limiters, k)
		}
	}
	limiter = rate.NewLimiter(limit, burst)
	limiters[key] = limiter
	return limiter
}

// Allow reports whether the client may make a plain request now.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.getLimiter(rl.overall, ip, rl.rate, rl.burst).Allow()
}

// AllowCheck reports whether the client may run a ticket check now.
// Both budgets are charged.
func (rl *RateLimiter) AllowCheck(ip string) bool {
	if !rl.getLimiter(rl.overall, ip, rl.rate, rl.burst).Allow() {
		return false
	}
	return rl.getLimiter(rl.check, ip, rl.checkRate, rl.checkBurst).Allow()
}

// Middleware rejects over-budget clients with 429 and a Retry-After
// hint. Health, metrics and static assets pass untouched.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range rateLimitExempt {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		ip := clientIP(c)
		var allowed bool
		if c.Request.Method == http.MethodPost && path == "/" {
			allowed = rl.AllowCheck(ip)
		} else {
			allowed = rl.Allow(ip)
		}
		if !allowed {
			c.Header("Retry-After", "10")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
