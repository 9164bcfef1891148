package limiter

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/itstheanurag/judgexec/internal/metrics"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter admits execution requests: a global token bucket, one bucket
// per client and a cap on concurrently running executions.
type RateLimiter struct {
	globalLimiter *rate.Limiter
	clientRate    rate.Limit
	clientBurst   int
	slots         chan struct{}

	// trusted proxies may name the client in X-Forwarded-For.
	trusted []netip.Prefix

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

func NewRateLimiter(globalRPS float64, clientRPS float64, clientBurst int, maxConcurrent int) *RateLimiter {
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(globalRPS), max(1, int(globalRPS)*2)),
		clientRate:    rate.Limit(clientRPS),
		clientBurst:   clientBurst,
		slots:         make(chan struct{}, maxConcurrent),
		clients:       make(map[string]*clientLimiter),
		now:           time.Now,
	}
}

// TrustProxies sets the peers whose X-Forwarded-For header names the client.
// Call it before serving.
func (rl *RateLimiter) TrustProxies(prefixes []netip.Prefix) {
	rl.trusted = prefixes
}

func (rl *RateLimiter) clientLimiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.clientRate, rl.clientBurst)}
		rl.clients[client] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Allow takes a concurrency slot when it returns true; the caller must
// release it with Done.
func (rl *RateLimiter) Allow(client string) bool {
	if !rl.globalLimiter.Allow() {
		metrics.RateLimitHits.WithLabelValues("global").Inc()
		return false
	}
	if !rl.clientLimiter(client).Allow() {
		metrics.RateLimitHits.WithLabelValues("client").Inc()
		return false
	}

	select {
	case rl.slots <- struct{}{}:
		return true
	default:
		metrics.RateLimitHits.WithLabelValues("concurrency").Inc()
		return false
	}
}

func (rl *RateLimiter) Done() {
	select {
	case <-rl.slots:
	default:
	}
}

func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r, rl.trusted)) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		defer rl.Done()

		next(w, r)
	}
}

// ClientIP is the remote host unless that host is a trusted proxy. Then it
// walks X-Forwarded-For from the right and returns the first hop that is not
// itself trusted.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	client, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		client = r.RemoteAddr
	}
	if !isTrusted(client, trusted) {
		return client
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		client = hop
		if !isTrusted(hop, trusted) {
			break
		}
	}
	return client
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Cleanup drops client limiters idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for client, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, client)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until stop is closed.
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup(interval)
			case <-stop:
				return
			}
		}
	}()
}
