package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"seatwatch.gbus.kr/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "seatwatch_test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRoute(id string) models.Route {
	return models.Route{
		ID:            id,
		Name:          "5100",
		RouteType:     "11",
		RouteTypeName: "직행좌석형시내버스",
		StartStopName: "경희대차고지",
		EndStopName:   "신분당선강남역",
		TurnStopID:    "201000042",
		TurnStopName:  "신분당선강남역",
		Company:       "경기고속",
	}
}

func TestUpsertRoute(t *testing.T) {
	s := setupTestStore(t)

	if err := s.UpsertRoute(testRoute("204000046")); err != nil {
		t.Fatalf("UpsertRoute failed: %v", err)
	}

	// An upsert of the same id must refresh attributes, not add a row.
	updated := testRoute("204000046")
	updated.Company = "대원고속"
	if err := s.UpsertRoute(updated); err != nil {
		t.Fatalf("UpsertRoute (second) failed: %v", err)
	}

	count, err := s.CountRoutes()
	if err != nil {
		t.Fatalf("CountRoutes failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 route after upsert, got %d", count)
	}

	routes, err := s.Routes()
	if err != nil {
		t.Fatalf("Routes failed: %v", err)
	}
	if routes[0].Company != "대원고속" {
		t.Errorf("Expected refreshed company, got %q", routes[0].Company)
	}
}

func TestRouteIDsOrdering(t *testing.T) {
	s := setupTestStore(t)

	for _, id := range []string{"204000046", "200000115", "228000050"} {
		if err := s.UpsertRoute(testRoute(id)); err != nil {
			t.Fatalf("UpsertRoute failed: %v", err)
		}
	}

	ids, err := s.RouteIDs()
	if err != nil {
		t.Fatalf("RouteIDs failed: %v", err)
	}
	want := []string{"200000115", "204000046", "228000050"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestReplaceStops(t *testing.T) {
	s := setupTestStore(t)

	first := []models.Stop{
		{StationID: "203000125", Seq: 1, Name: "경희대차고지", Lat: 37.2431, Lon: 127.0802},
		{StationID: "203000126", Seq: 2, Name: "사색의광장", Lat: 37.2465, Lon: 127.0781},
	}
	if err := s.ReplaceStops("204000046", first); err != nil {
		t.Fatalf("ReplaceStops failed: %v", err)
	}

	second := []models.Stop{
		{StationID: "203000125", Seq: 1, Name: "경희대차고지", Lat: 37.2431, Lon: 127.0802},
		{StationID: "203000200", Seq: 2, Name: "영통역", Lat: 37.2516, Lon: 127.0711},
		{StationID: "203000211", Seq: 3, Name: "청명역", Lat: 37.2597, Lon: 127.0645},
	}
	if err := s.ReplaceStops("204000046", second); err != nil {
		t.Fatalf("ReplaceStops (refresh) failed: %v", err)
	}

	stops, err := s.StopsForRoute("204000046")
	if err != nil {
		t.Fatalf("StopsForRoute failed: %v", err)
	}
	if len(stops) != 3 {
		t.Fatalf("Expected 3 stops after refresh, got %d", len(stops))
	}
	if stops[1].StationID != "203000200" || stops[1].Seq != 2 {
		t.Errorf("Unexpected second stop: %+v", stops[1])
	}
}

func TestObservationsSince(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	ages := []time.Duration{50 * time.Minute, 20 * time.Minute, 5 * time.Minute}
	for i, age := range ages {
		err := s.InsertObservation(models.RawObservation{
			RouteID:        "204000046",
			VehicleID:      "202000318",
			StopID:         "203000125",
			StopName:       "경희대차고지",
			RemainingSeats: 20 + i,
			ObservedAt:     now.Add(-age),
		})
		if err != nil {
			t.Fatalf("InsertObservation failed: %v", err)
		}
	}

	obs, err := s.ObservationsSince(now.Add(-30 * time.Minute))
	if err != nil {
		t.Fatalf("ObservationsSince failed: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("Expected 2 observations inside window, got %d", len(obs))
	}
	if !obs[0].ObservedAt.Before(obs[1].ObservedAt) {
		t.Errorf("Expected oldest-first ordering")
	}
	if obs[1].RemainingSeats != 22 {
		t.Errorf("Expected newest observation to have 22 seats, got %d", obs[1].RemainingSeats)
	}
}

func TestDeleteObservationsBefore(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now().UTC()
	for _, age := range []time.Duration{30 * time.Hour, 26 * time.Hour, 2 * time.Hour} {
		err := s.InsertObservation(models.RawObservation{
			RouteID:        "204000046",
			VehicleID:      "202000318",
			RemainingSeats: 10,
			ObservedAt:     now.Add(-age),
		})
		if err != nil {
			t.Fatalf("InsertObservation failed: %v", err)
		}
	}

	deleted, err := s.DeleteObservationsBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteObservationsBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	remaining, err := s.ObservationsSince(now.Add(-48 * time.Hour))
	if err != nil {
		t.Fatalf("ObservationsSince failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("Expected 1 observation to survive, got %d", len(remaining))
	}
}

func TestDeleteObservationsByID(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		err := s.InsertObservation(models.RawObservation{
			RouteID:        "204000046",
			VehicleID:      "202000318",
			RemainingSeats: i,
			ObservedAt:     now.Add(-time.Duration(13+i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("InsertObservation failed: %v", err)
		}
	}

	ids, err := s.ObservationIDsBetween(now.Add(-24*time.Hour), now.Add(-12*time.Hour))
	if err != nil {
		t.Fatalf("ObservationIDsBetween failed: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("Expected 5 candidate ids, got %d", len(ids))
	}

	deleted, err := s.DeleteObservationsByID(ids[:3])
	if err != nil {
		t.Fatalf("DeleteObservationsByID failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	remaining, err := s.ObservationsSince(now.Add(-48 * time.Hour))
	if err != nil {
		t.Fatalf("ObservationsSince failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("Expected 2 observations left, got %d", len(remaining))
	}
}

func TestBackfillStopName(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now().UTC()
	nameless := models.RawObservation{
		RouteID:        "204000046",
		VehicleID:      "202000318",
		StopID:         "203000200",
		RemainingSeats: 12,
		ObservedAt:     now,
	}
	named := nameless
	named.VehicleID = "202000442"
	named.StopName = "영통역.기존"
	if err := s.InsertObservation(nameless); err != nil {
		t.Fatalf("InsertObservation failed: %v", err)
	}
	if err := s.InsertObservation(named); err != nil {
		t.Fatalf("InsertObservation failed: %v", err)
	}

	n, err := s.BackfillStopName("203000200", "영통역")
	if err != nil {
		t.Fatalf("BackfillStopName failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 backfilled row, got %d", n)
	}

	obs, err := s.ObservationsSince(now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ObservationsSince failed: %v", err)
	}
	for _, o := range obs {
		if o.VehicleID == "202000442" && o.StopName != "영통역.기존" {
			t.Errorf("Backfill must not overwrite an existing name, got %q", o.StopName)
		}
		if o.VehicleID == "202000318" && o.StopName != "영통역" {
			t.Errorf("Expected backfilled name 영통역, got %q", o.StopName)
		}
	}
}

func TestUpsertSeatStatWeightedMerge(t *testing.T) {
	s := setupTestStore(t)

	key := models.StatKey{RouteID: "204000046", StopID: "203000125", DayOfWeek: 1, HourOfDay: 8}
	now := time.Now().UTC()

	if err := s.UpsertSeatStat(key, "경희대차고지", 10, 5, now); err != nil {
		t.Fatalf("UpsertSeatStat (first) failed: %v", err)
	}
	if err := s.UpsertSeatStat(key, "경희대차고지", 20, 5, now.Add(time.Hour)); err != nil {
		t.Fatalf("UpsertSeatStat (second) failed: %v", err)
	}

	stats, err := s.SeatStatsForRoute("204000046")
	if err != nil {
		t.Fatalf("SeatStatsForRoute failed: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Expected 1 stat row, got %d", len(stats))
	}
	got := stats[0]
	if got.SamplesCount != 10 {
		t.Errorf("Expected 10 samples, got %d", got.SamplesCount)
	}
	if math.Abs(got.AverageSeats-15.0) > 1e-9 {
		t.Errorf("Expected merged average 15.0, got %v", got.AverageSeats)
	}
}

func TestUpsertSeatStatZeroBatch(t *testing.T) {
	s := setupTestStore(t)

	key := models.StatKey{RouteID: "204000046", StopID: "203000125", DayOfWeek: 1, HourOfDay: 8}
	if err := s.UpsertSeatStat(key, "경희대차고지", 10, 0, time.Now()); err != nil {
		t.Fatalf("UpsertSeatStat with empty batch failed: %v", err)
	}

	stats, err := s.SeatStatsForRoute("204000046")
	if err != nil {
		t.Fatalf("SeatStatsForRoute failed: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Expected no stat row for an empty batch, got %d", len(stats))
	}
}

func TestClearSeatStats(t *testing.T) {
	s := setupTestStore(t)

	key := models.StatKey{RouteID: "204000046", StopID: "203000125", DayOfWeek: 6, HourOfDay: 10}
	if err := s.UpsertSeatStat(key, "경희대차고지", 8, 3, time.Now()); err != nil {
		t.Fatalf("UpsertSeatStat failed: %v", err)
	}
	if err := s.ClearSeatStats(); err != nil {
		t.Fatalf("ClearSeatStats failed: %v", err)
	}

	stats, err := s.SeatStatsForRoute("204000046")
	if err != nil {
		t.Fatalf("SeatStatsForRoute failed: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Expected empty stats after clear, got %d rows", len(stats))
	}
}
