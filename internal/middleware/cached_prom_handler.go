package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// CachedPromHandler wraps promhttp.HandlerFor with a caching layer. The
// exposition is regathered on a fixed interval and every scrape in between is
// served from the cached bytes, so concurrent scrapers never trigger
// concurrent gathers.
type CachedPromHandler struct {
	mu    sync.RWMutex
	cache []byte
	ttl   time.Duration
	h     http.Handler
}

// NewCachedPromHandler starts the refresh loop in the background; it stops
// when ctx is canceled. ttl should be at most the scrape interval.
func NewCachedPromHandler(ctx context.Context, gatherer prometheus.Gatherer, ttl time.Duration) *CachedPromHandler {
	c := &CachedPromHandler{
		ttl: ttl,
		h:   promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}

	go c.refreshLoop(ctx)
	return c
}

func (c *CachedPromHandler) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var buf bytes.Buffer
			rec := &responseRecorder{buf: &buf}
			c.h.ServeHTTP(rec, nil)

			c.mu.Lock()
			c.cache = buf.Bytes()
			c.mu.Unlock()
		}
	}
}

// ServeHTTP serves the cached exposition, falling back to a live gather
// before the first refresh has completed.
func (c *CachedPromHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.cache) == 0 {
		c.h.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	_, _ = w.Write(c.cache)
}

// responseRecorder captures promhttp output into a buffer. Status codes are
// ignored; a successful gather is always 200.
type responseRecorder struct {
	buf *bytes.Buffer
}

func (rr *responseRecorder) Write(b []byte) (int, error) { return rr.buf.Write(b) }
func (rr *responseRecorder) Header() http.Header         { return http.Header{} }
func (rr *responseRecorder) WriteHeader(statusCode int)  {}
