package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"seatwatch.gbus.kr/internal/gbis"
	"seatwatch.gbus.kr/internal/geo"
)

// newCatalogServer fakes the route search, detail and station list
// endpoints with a single seat-bus route plus a city bus that must be
// filtered out.
func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "getBusRouteListv2"):
			if r.URL.Query().Get("keyword") != "5" {
				w.Write([]byte(`{"msgHeader": {"resultCode": 4, "resultMessage": "no data"}}`))
				return
			}
			w.Write([]byte(`{
				"msgHeader": {"resultCode": 0, "resultMessage": "OK"},
				"msgBody": {"busRouteList": [
					{"routeId": 204000046, "routeName": "5100", "routeTypeCd": 11,
					 "startStationName": "경희대차고지", "endStationName": "신분당선강남역", "regionName": "용인"},
					{"routeId": 204000013, "routeName": "50", "routeTypeCd": 13,
					 "startStationName": "수원역", "endStationName": "광교", "regionName": "수원"}
				]}
			}`))
		case strings.Contains(r.URL.Path, "getBusRouteInfoItemv2"):
			w.Write([]byte(`{
				"msgHeader": {"resultCode": 0, "resultMessage": "OK"},
				"msgBody": {"busRouteInfoItem": {
					"routeId": 204000046, "routeName": "5100", "routeTypeCd": 11,
					"turnStID": 201000042, "turnStNm": "신분당선강남역", "companyName": "경기고속"
				}}
			}`))
		case strings.Contains(r.URL.Path, "getBusRouteStationListv2"):
			w.Write([]byte(`{
				"msgHeader": {"resultCode": 0, "resultMessage": "OK"},
				"msgBody": {"busRouteStationList": [
					{"stationId": 203000125, "stationName": "경희대차고지", "stationSeq": 1, "x": 127.0802, "y": 37.2431},
					{"stationId": 203000200, "stationName": "영통역", "stationSeq": 2, "x": 127.0711, "y": 37.2516},
					{"stationId": 203000999, "stationName": "좌표없음", "stationSeq": 3, "x": 0, "y": 0}
				]}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestCatalogRefreshRoutes(t *testing.T) {
	ts := newCatalogServer(t)
	defer ts.Close()

	st := newTestStore(t)
	client := gbis.NewClient(ts.URL, "test-key", nil, discardLogger())
	boxes := geo.NewBoundingBoxStore()
	svc := NewCatalogService(st, client, boxes, discardLogger())

	if err := svc.RefreshRoutes(context.Background()); err != nil {
		t.Fatalf("RefreshRoutes failed: %v", err)
	}

	routes, err := st.Routes()
	if err != nil {
		t.Fatalf("Routes failed: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("Expected 1 seat-bus route catalogued, got %d", len(routes))
	}

	route := routes[0]
	if route.ID != "204000046" || route.Name != "5100" {
		t.Errorf("Unexpected route: %+v", route)
	}
	if route.TurnStopID != "201000042" || route.TurnStopName != "신분당선강남역" {
		t.Errorf("Expected turnaround detail, got %+v", route)
	}
	if route.Company != "경기고속" {
		t.Errorf("Expected company from detail, got %q", route.Company)
	}
	if route.RouteTypeName != "직행좌석형시내버스" {
		t.Errorf("Unexpected route type name %q", route.RouteTypeName)
	}

	stops, err := st.StopsForRoute("204000046")
	if err != nil {
		t.Fatalf("StopsForRoute failed: %v", err)
	}
	if len(stops) != 3 {
		t.Fatalf("Expected 3 stops, got %d", len(stops))
	}
	if stops[1].Name != "영통역" || stops[1].Lat != 37.2516 {
		t.Errorf("Unexpected stop: %+v", stops[1])
	}

	// The bounding box skips the (0,0) stop.
	bbox, ok := boxes.Get("204000046")
	if !ok {
		t.Fatalf("Expected a bounding box for the route")
	}
	if !bbox.Contains(37.2470, 127.0750) {
		t.Errorf("Expected bounding box to cover the corridor, got %+v", bbox)
	}
	if bbox.Contains(0, 0) {
		t.Errorf("Bounding box must not include the invalid coordinate")
	}
}

func TestCatalogRefreshSkipsKnownStops(t *testing.T) {
	ts := newCatalogServer(t)
	defer ts.Close()

	st := newTestStore(t)
	client := gbis.NewClient(ts.URL, "test-key", nil, discardLogger())
	svc := NewCatalogService(st, client, geo.NewBoundingBoxStore(), discardLogger())

	if err := svc.RefreshRoutes(context.Background()); err != nil {
		t.Fatalf("RefreshRoutes failed: %v", err)
	}
	// Second refresh: route upserted again, stop list untouched.
	if err := svc.RefreshRoutes(context.Background()); err != nil {
		t.Fatalf("Second RefreshRoutes failed: %v", err)
	}

	stops, err := st.StopsForRoute("204000046")
	if err != nil {
		t.Fatalf("StopsForRoute failed: %v", err)
	}
	if len(stops) != 3 {
		t.Errorf("Expected stop list unchanged, got %d stops", len(stops))
	}
}
