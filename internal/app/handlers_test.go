package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"seatwatch.gbus.kr/internal/models"
)

func TestHealthcheckHandler(t *testing.T) {
	app := newTestApplication(t)

	t.Run("NotReadyWithEmptyCatalogue", func(t *testing.T) {
		rr := httptest.NewRecorder()
		request, err := http.NewRequest(http.MethodGet, "/v1/healthcheck", nil)
		if err != nil {
			t.Fatal(err)
		}

		app.healthcheckHandler(rr, request)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("handler returned wrong status code: got %v want %v",
				rr.Code, http.StatusInternalServerError)
		}

		var resp HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Ready {
			t.Error("expected ready false with an empty catalogue")
		}
		if resp.Routes != 0 {
			t.Errorf("expected routes 0, got %d", resp.Routes)
		}
	})

	t.Run("ReadyWithCataloguedRoute", func(t *testing.T) {
		err := app.Store.UpsertRoute(models.Route{ID: "204000046", Name: "5100"})
		if err != nil {
			t.Fatal(err)
		}

		rr := httptest.NewRecorder()
		request, err := http.NewRequest(http.MethodGet, "/v1/healthcheck", nil)
		if err != nil {
			t.Fatal(err)
		}

		app.healthcheckHandler(rr, request)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v",
				rr.Code, http.StatusOK)
		}

		var resp HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Status != "available" {
			t.Errorf("expected status 'available', got %q", resp.Status)
		}
		if resp.Environment != "testing" {
			t.Errorf("expected environment 'testing', got %q", resp.Environment)
		}
		if resp.Version != "test-version" {
			t.Errorf("expected version 'test-version', got %q", resp.Version)
		}
		if !resp.Ready {
			t.Error("expected ready true, got false")
		}
		if resp.Routes != 1 {
			t.Errorf("expected routes 1, got %d", resp.Routes)
		}
	})
}

func TestCollectHandlerEmptyCatalogue(t *testing.T) {
	app := newTestApplication(t)

	rr := httptest.NewRecorder()
	request, err := http.NewRequest(http.MethodPost, "/v1/collect", nil)
	if err != nil {
		t.Fatal(err)
	}

	app.collectHandler(rr, request)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			rr.Code, http.StatusOK)
	}

	var resp collectResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// With nothing catalogued (and possibly outside operating hours) the
	// cycle always reports a skip.
	if resp.Success {
		t.Error("expected success false for a skipped cycle")
	}
	if resp.Message == "" {
		t.Error("expected a skip reason in the message")
	}
	if resp.RoutesPolled != 0 {
		t.Errorf("expected routesPolled 0, got %d", resp.RoutesPolled)
	}
}

func TestSweepHandler(t *testing.T) {
	app := newTestApplication(t)

	err := app.Store.InsertObservation(models.RawObservation{
		RouteID:        "204000046",
		VehicleID:      "78001234",
		StopID:         "203000125",
		RemainingSeats: 12,
		ObservedAt:     time.Now().Add(-30 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	request, err := http.NewRequest(http.MethodPost, "/v1/sweep", nil)
	if err != nil {
		t.Fatal(err)
	}

	app.sweepHandler(rr, request)

	if rr.Code != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			rr.Code, http.StatusOK)
	}

	var resp sweepResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success true, got false (%s)", resp.Message)
	}
	if resp.Deleted != 1 {
		t.Errorf("expected deleted 1, got %d", resp.Deleted)
	}
}

func TestRouteSeatsHandler(t *testing.T) {
	app := newTestApplication(t)

	err := app.Store.UpsertRoute(models.Route{ID: "204000046", Name: "5100", RouteTypeName: "직행좌석형시내버스"})
	if err != nil {
		t.Fatal(err)
	}

	key := models.StatKey{
		RouteID:   "204000046",
		StopID:    "203000125",
		DayOfWeek: 1,
		HourOfDay: 8,
	}
	if err := app.Store.UpsertSeatStat(key, "신분당선강남역", 14.5, 12, time.Now()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := app.Routes(ctx)

	t.Run("KnownRoute", func(t *testing.T) {
		rr := httptest.NewRecorder()
		request, err := http.NewRequest(http.MethodGet, "/v1/routes/204000046/seats", nil)
		if err != nil {
			t.Fatal(err)
		}

		handler.ServeHTTP(rr, request)

		if rr.Code != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v",
				rr.Code, http.StatusOK)
		}

		var resp routeSeatsResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.RouteID != "204000046" {
			t.Errorf("expected routeId 204000046, got %q", resp.RouteID)
		}
		if resp.RouteName != "5100" {
			t.Errorf("expected routeName 5100, got %q", resp.RouteName)
		}
		wantStats := []routeSeatStat{{
			StopID:       "203000125",
			StopName:     "신분당선강남역",
			DayOfWeek:    1,
			HourOfDay:    8,
			AverageSeats: 14.5,
			SamplesCount: 12,
		}}
		if diff := cmp.Diff(wantStats, resp.Stats); diff != "" {
			t.Errorf("unexpected statistics (-want +got):\n%s", diff)
		}
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		rr := httptest.NewRecorder()
		request, err := http.NewRequest(http.MethodGet, "/v1/routes/999999999/seats", nil)
		if err != nil {
			t.Fatal(err)
		}

		handler.ServeHTTP(rr, request)

		if rr.Code != http.StatusNotFound {
			t.Errorf("handler returned wrong status code: got %v want %v",
				rr.Code, http.StatusNotFound)
		}
	})
}
