package app

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"seatwatch.gbus.kr/internal/config"
	"seatwatch.gbus.kr/internal/store"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "seatwatch_test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.NewConfig(4000, "testing", config.DefaultSettings())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	httpClient := &http.Client{Timeout: 5 * time.Second}

	return New(cfg, logger, st, httpClient, "test-version")
}
