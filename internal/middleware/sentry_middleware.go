package middleware

import (
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
)

// SentryMiddleware wraps a handler so panics are captured and delivered
// before the response completes.
func SentryMiddleware(next http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: true,
		Timeout:         2 * time.Second,
	})

	return sentryHandler.Handle(next)
}
