package limiter

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowPerClientBurst(t *testing.T) {
	rl := NewRateLimiter(1000, 0.001, 2, 100)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestAllowConcurrencyCap(t *testing.T) {
	rl := NewRateLimiter(1000, 1000, 1000, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	rl.Done()
	assert.True(t, rl.Allow("a"))
}

func TestCleanupDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1000, 1000, 1000, 10)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	rl.Done()
	now = now.Add(10 * time.Minute)
	rl.Allow("new")
	rl.Done()

	assert.Equal(t, 1, rl.Cleanup(5*time.Minute))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "new")
}

func TestMiddleware(t *testing.T) {
	rl := NewRateLimiter(1000, 1000, 1000, 1)
	block := make(chan struct{})
	entered := make(chan struct{})
	handler := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-block
		w.WriteHeader(http.StatusOK)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/execute", nil))
	}()
	<-entered

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/execute", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(block)
	<-done
}

func TestClientIPIgnoresForwardedForFromUntrustedPeers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.4:5555"
	assert.Equal(t, "198.51.100.4", ClientIP(r, nil))

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "198.51.100.4", ClientIP(r, nil))

	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	assert.Equal(t, "198.51.100.4", ClientIP(r, trusted))
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r, trusted))

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(r, trusted))

	// A client supplied entry left of the real hop does not count.
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", ClientIP(r, trusted))

	r.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.2")
	assert.Equal(t, "10.0.0.3", ClientIP(r, trusted))
}

func TestMiddlewareKeysUntrustedClientsByRemoteAddr(t *testing.T) {
	rl := NewRateLimiter(1000, 0.001, 1, 100)
	handler := rl.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	send := func(forwarded string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/execute", nil)
		r.RemoteAddr = "198.51.100.4:5555"
		r.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler(rec, r)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.2"))

	rl.TrustProxies([]netip.Prefix{netip.MustParsePrefix("198.51.100.0/24")})
	assert.Equal(t, http.StatusOK, send("203.0.113.3"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.3"))
}
