package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"seatwatch.gbus.kr/internal/middleware"
)

// Routes builds the HTTP handler tree. The context bounds the metrics
// cache refresh goroutine.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.HandlerFunc(http.MethodPost, "/v1/collect", app.collectHandler)
	router.HandlerFunc(http.MethodPost, "/v1/sweep", app.sweepHandler)
	router.HandlerFunc(http.MethodGet, "/v1/routes/:id/seats", app.routeSeatsHandler)

	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	return middleware.SecurityHeaders(middleware.SentryMiddleware(router))
}
