package gbis

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

func TestBusLocations_WithVCR(t *testing.T) {
	rec, err := recorder.New(filepath.Join("testdata", "vcr", "bus_locations_success"))
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}
	defer rec.Stop()

	client := NewClient(
		"http://apis.data.go.kr/6410000",
		"test-key",
		&http.Client{Transport: rec, Timeout: 10 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	locations, err := client.BusLocations(context.Background(), "204000046")
	if err != nil {
		t.Fatalf("BusLocations failed: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 locations from cassette, got %d", len(locations))
	}
	if locations[0].SeatCount() != 27 {
		t.Errorf("expected 27 remaining seats, got %d", locations[0].SeatCount())
	}
}
