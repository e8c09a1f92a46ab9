package config

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	BASE_BACKOFF   = 1 * time.Second
	MAX_BACKOFF    = 2 * time.Minute
	BACKOFF_FACTOR = 2.0
	JITTER_FACTOR  = 0.5
)

type backoffData struct {
	BackoffDelay time.Duration
	NextRetryAt  time.Time
}

// BackoffStore tracks per-route retry deadlines so that a route whose
// position fetch keeps failing is skipped until its backoff expires instead
// of burning budget every cycle.
type BackoffStore struct {
	mu       sync.RWMutex
	backoffs map[string]backoffData
}

func NewBackoffStore() *BackoffStore {
	return &BackoffStore{
		backoffs: make(map[string]backoffData),
	}
}

func (s *BackoffStore) NextRetryAt(routeID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if backoff, exists := s.backoffs[routeID]; exists {
		return backoff.NextRetryAt.UTC(), true
	}
	return time.Time{}, false
}

func (s *BackoffStore) UpdateBackoff(routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if backoff, exists := s.backoffs[routeID]; exists {
		backoff.BackoffDelay = calculateNewBackoffDelay(backoff.BackoffDelay)
		backoff.NextRetryAt = calculateNextRetryAt(backoff.BackoffDelay)
		s.backoffs[routeID] = backoff
	} else {
		s.backoffs[routeID] = backoffData{
			BackoffDelay: BASE_BACKOFF,
			NextRetryAt:  calculateNextRetryAt(BASE_BACKOFF),
		}
	}
}

func (s *BackoffStore) ResetBackoff(routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.backoffs, routeID)
}

func calculateNextRetryAt(backoff time.Duration) time.Time {
	jitter := time.Duration(rand.Float64() * float64(backoff) * JITTER_FACTOR)
	backoff += jitter
	if backoff > MAX_BACKOFF {
		backoff = MAX_BACKOFF
	}
	return time.Now().Add(backoff).UTC()
}

func calculateNewBackoffDelay(backoffDelay time.Duration) time.Duration {
	backoffDelay *= BACKOFF_FACTOR
	if backoffDelay >= MAX_BACKOFF {
		backoffDelay = MAX_BACKOFF
	}
	return backoffDelay
}

// DoWithBackoff performs req through client, retrying transport failures and
// 5xx responses with exponential backoff until maxRetries is exhausted or the
// context is canceled.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	delay := BASE_BACKOFF
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := client.Do(req.WithContext(ctx))
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status: %d", resp.StatusCode)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = calculateNewBackoffDelay(delay)
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
