package web

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	scanStrikeWindow = 10 * time.Minute
	scanStrikeLimit  = 3
	scanBanFor       = 30 * time.Minute
	scanMaxTracked   = 10000
)

// Vulnerability scanners probe these paths on every host they find. A
// lottery checker serves none of them.
var (
	scanExactPaths = []string{
		"/wp-login.php",
		"/xmlrpc.php",
		"/.env",
		"/config.json",
		"/server-status",
	}
	scanPrefixPaths = []string{
		"/wp-admin",
		"/wp-content",
		"/wp-includes",
		"/phpmyadmin",
		"/cgi-bin",
		"/vendor/phpunit",
		"/.git",
	}
	scanSubstrings = []string{
		"etc/passwd",
		"boot.ini",
		"eval(",
		"base64_decode",
		"../..",
	}
)

// ScanGuard tracks clients probing for other people's software and
// temporarily bans repeat offenders.
type ScanGuard struct {
	mu      sync.Mutex
	now     func() time.Time
	strikes map[string][]time.Time
	banned  map[string]time.Time
}

func NewScanGuard() *ScanGuard {
	return &ScanGuard{
		now:     time.Now,
		strikes: make(map[string][]time.Time),
		banned:  make(map[string]time.Time),
	}
}

// suspiciousPath reports whether a request path looks like a scanner
// probe. The path is unescaped twice so double-encoded traversal does
// not slip through.
func suspiciousPath(path string) bool {
	decoded := strings.ToLower(path)
	for i := 0; i < 2; i++ {
		if unescaped, err := url.PathUnescape(decoded); err == nil {
			decoded = unescaped
		}
	}

	for _, exact := range scanExactPaths {
		if decoded == exact {
			return true
		}
	}
	for _, prefix := range scanPrefixPaths {
		if strings.HasPrefix(decoded, prefix) {
			return true
		}
	}
	for _, sub := range scanSubstrings {
		if strings.Contains(decoded, sub) {
			return true
		}
	}
	return false
}

// Banned reports whether the client is currently banned.
func (g *ScanGuard) Banned(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	until, ok := g.banned[ip]
	if !ok {
		return false
	}
	if g.now().After(until) {
		delete(g.banned, ip)
		return false
	}
	return true
}

// Strike records one probe from the client and reports whether the
// strike pushed it over the ban threshold.
func (g *ScanGuard) Strike(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-scanStrikeWindow)

	recent := make([]time.Time, 0, scanStrikeLimit)
	for _, at := range g.strikes[ip] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	recent = append(recent, now)

	if len(g.strikes) >= scanMaxTracked {
		g.strikes = make(map[string][]time.Time)
	}
	g.strikes[ip] = recent

	if len(recent) >= scanStrikeLimit {
		g.banned[ip] = now.Add(scanBanFor)
		delete(g.strikes, ip)
		return true
	}
	return false
}

// Middleware drops banned clients and turns scanner probes into 404s
// while counting strikes.
func (g *ScanGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)

		if g.Banned(ip) {
			c.Header("Retry-After", "1800")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if suspiciousPath(c.Request.URL.Path) {
			g.Strike(ip)
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		c.Next()
	}
}
