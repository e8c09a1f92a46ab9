package gbis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"seatwatch.gbus.kr/internal/metrics"
	"seatwatch.gbus.kr/internal/report"
)

// API endpoints, relative to the service base URL.
const (
	endpointRouteList     = "/busrouteservice/v2/getBusRouteListv2"
	endpointRouteInfo     = "/busrouteservice/v2/getBusRouteInfoItemv2"
	endpointRouteStations = "/busrouteservice/v2/getBusRouteStationListv2"
	endpointBusLocations  = "/buslocationservice/v2/getBusLocationListv2"
	endpointStationInfo   = "/busstationservice/v2/busStationInfov2"
	endpointArrivals      = "/busarrivalservice/v2/getBusArrivalListv2"
)

// Client is a thin HTTP client for the public transit API. All requests are
// query-string based with the service key and format=json appended. A request
// that fails at the transport level returns an error; a request that succeeds
// but carries no usable payload returns an empty result.
type Client struct {
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(baseURL, serviceKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewPooledClient()
	}
	return &Client{
		BaseURL:    baseURL,
		ServiceKey: serviceKey,
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

func (c *Client) call(ctx context.Context, endpoint string, params url.Values, dst interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("serviceKey", c.ServiceKey)
	params.Set("format", "json")

	reqURL := c.BaseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.TransitApiStatus.WithLabelValues(endpoint).Set(0)
		err = fmt.Errorf("failed to fetch %s: %w", endpoint, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: report.MakeMap("endpoint", endpoint),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TransitApiStatus.WithLabelValues(endpoint).Set(0)
		err := fmt.Errorf("unexpected status code from %s: %d", endpoint, resp.StatusCode)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags: report.MakeMap("endpoint", endpoint),
			ExtraContext: map[string]interface{}{
				"status_code": resp.StatusCode,
			},
		})
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TransitApiStatus.WithLabelValues(endpoint).Set(0)
		return fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	metrics.TransitApiStatus.WithLabelValues(endpoint).Set(1)

	ok, err := decodeItems(data, dst)
	if err != nil {
		return fmt.Errorf("failed to decode items from %s: %w", endpoint, err)
	}
	if !ok && c.Logger != nil {
		c.Logger.Debug("transit API returned no data", "endpoint", endpoint)
	}
	return nil
}

// RouteList searches routes by keyword and returns only seat-bus routes.
func (c *Client) RouteList(ctx context.Context, keyword string) ([]RouteSummary, error) {
	var routes []RouteSummary
	params := url.Values{}
	params.Set("keyword", keyword)
	if err := c.call(ctx, endpointRouteList, params, &routes); err != nil {
		return nil, err
	}

	seatRoutes := routes[:0]
	for _, route := range routes {
		if code, err := route.RouteTypeCd.Int64(); err == nil && IsSeatBusType(int(code)) {
			seatRoutes = append(seatRoutes, route)
		}
	}
	return seatRoutes, nil
}

// RouteDetail fetches a route's detail record. Returns nil for routes that
// exist but are not seat buses.
func (c *Client) RouteDetail(ctx context.Context, routeID string) (*RouteDetail, error) {
	var details []RouteDetail
	params := url.Values{}
	params.Set("routeId", routeID)
	if err := c.call(ctx, endpointRouteInfo, params, &details); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, nil
	}

	detail := details[0]
	if code, err := detail.RouteTypeCd.Int64(); err != nil || !IsSeatBusType(int(code)) {
		return nil, nil
	}
	return &detail, nil
}

// RouteStations fetches a route's stop list in route order.
func (c *Client) RouteStations(ctx context.Context, routeID string) ([]RouteStation, error) {
	var stations []RouteStation
	params := url.Values{}
	params.Set("routeId", routeID)
	if err := c.call(ctx, endpointRouteStations, params, &stations); err != nil {
		return nil, err
	}
	return stations, nil
}

// BusLocations fetches the current vehicle positions for a route, keeping
// only vehicles that report a seat count field at all. A -1 seat count
// ("no information") is passed through for the caller to audit.
func (c *Client) BusLocations(ctx context.Context, routeID string) ([]VehicleLocation, error) {
	var locations []VehicleLocation
	params := url.Values{}
	params.Set("routeId", routeID)
	if err := c.call(ctx, endpointBusLocations, params, &locations); err != nil {
		return nil, err
	}

	withSeats := locations[:0]
	for _, loc := range locations {
		if loc.RemainSeatCnt != nil {
			withSeats = append(withSeats, loc)
		}
	}
	return withSeats, nil
}

// StationInfo fetches a station's detail record.
func (c *Client) StationInfo(ctx context.Context, stationID string) (*StationInfo, error) {
	var stations []StationInfo
	params := url.Values{}
	params.Set("stationId", stationID)
	if err := c.call(ctx, endpointStationInfo, params, &stations); err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, nil
	}
	return &stations[0], nil
}

// StationArrivals fetches arrival predictions at a station, filtered to
// seat-bus routes.
func (c *Client) StationArrivals(ctx context.Context, stationID string) ([]StationArrival, error) {
	var arrivals []StationArrival
	params := url.Values{}
	params.Set("stationId", stationID)
	if err := c.call(ctx, endpointArrivals, params, &arrivals); err != nil {
		return nil, err
	}

	seatArrivals := arrivals[:0]
	for _, arrival := range arrivals {
		if code, err := arrival.RouteTypeCd.Int64(); err == nil && IsSeatBusType(int(code)) {
			seatArrivals = append(seatArrivals, arrival)
		}
	}
	return seatArrivals, nil
}

// SeatCount returns the vehicle's remaining seat count, or -1 when the
// vehicle reported "no information".
func (v VehicleLocation) SeatCount() int {
	if v.RemainSeatCnt == nil {
		return -1
	}
	return *v.RemainSeatCnt
}
