package gbis

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"seatwatch.gbus.kr/internal/metrics"
)

// latencyTrackingRoundTripper wraps another RoundTripper to record the
// duration of each outgoing request in the OutgoingLatency histogram,
// labeled by URL (without query parameters, which carry the service key),
// method and status.
type latencyTrackingRoundTripper struct {
	next http.RoundTripper
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	safeURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path

	metrics.OutgoingLatency.WithLabelValues(
		safeURL,
		req.Method,
		status,
	).Observe(duration)

	return resp, err
}

// NewPooledClient returns an HTTP client tuned for polling the transit API
// every few minutes: connection reuse to avoid repeated TCP/TLS handshakes
// against the same host, fail-fast dial and handshake timeouts, and a 10s
// overall request timeout so an unresponsive endpoint cannot stall a cycle.
// The transport is instrumented with the latency-tracking RoundTripper.
func NewPooledClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	instrumentedTransport := &latencyTrackingRoundTripper{next: transport}

	client := &http.Client{
		Transport: instrumentedTransport,
		Timeout:   10 * time.Second,
	}
	return client
}
