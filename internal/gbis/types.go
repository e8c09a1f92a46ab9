package gbis

import "encoding/json"

// Seat-bus route type codes: the route classes whose vehicles report a
// remaining-seat count. Everything else (city buses, airport limousines,
// village buses) is filtered out at the client boundary.
var seatBusTypeCodes = map[int]struct{}{
	11: {}, // express seated city bus
	12: {}, // seated city bus
	14: {}, // metropolitan express bus
	16: {}, // Gyeonggi circular bus
	17: {}, // semi-public express seated bus
	21: {}, // express seated rural bus
	22: {}, // seated rural bus
}

// IsSeatBusType reports whether the given route type code belongs to a
// seat-bus class.
func IsSeatBusType(code int) bool {
	_, ok := seatBusTypeCodes[code]
	return ok
}

// RouteTypeName maps a seat-bus route type code to its display name.
func RouteTypeName(code int) string {
	names := map[int]string{
		11: "직행좌석형시내버스",
		12: "좌석형시내버스",
		14: "광역급행형시내버스",
		16: "경기순환버스",
		17: "준공영제직행좌석시내버스",
		21: "직행좌석형농어촌버스",
		22: "좌석형농어촌버스",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return "좌석버스"
}

// RouteSummary is one entry of the route search response.
type RouteSummary struct {
	RouteID          json.Number `json:"routeId"`
	RouteName        string      `json:"routeName"`
	RouteTypeCd      json.Number `json:"routeTypeCd"`
	RouteTypeName    string      `json:"routeTypeName"`
	StartStationID   json.Number `json:"startStationId"`
	StartStationName string      `json:"startStationName"`
	EndStationID     json.Number `json:"endStationId"`
	EndStationName   string      `json:"endStationName"`
	RegionName       string      `json:"regionName"`
}

// RouteDetail is the route detail response, of which the collector only
// needs the turnaround stop and operator fields beyond the summary data.
type RouteDetail struct {
	RouteID          json.Number `json:"routeId"`
	RouteName        string      `json:"routeName"`
	RouteTypeCd      json.Number `json:"routeTypeCd"`
	RouteTypeName    string      `json:"routeTypeName"`
	StartStationName string      `json:"startStationName"`
	EndStationName   string      `json:"endStationName"`
	TurnStID         json.Number `json:"turnStID"`
	TurnStNm         string      `json:"turnStNm"`
	CompanyName      string      `json:"companyName"`
}

// RouteStation is one stop of a route's stop list, in route order.
type RouteStation struct {
	StationID   json.Number `json:"stationId"`
	StationName string      `json:"stationName"`
	StationSeq  json.Number `json:"stationSeq"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
}

// VehicleLocation is one running vehicle's position-and-seats reading.
// RemainSeatCnt is -1 when the vehicle does not report seat counts.
type VehicleLocation struct {
	VehID         json.Number `json:"vehId"`
	PlateNo       string      `json:"plateNo"`
	RouteID       json.Number `json:"routeId"`
	StationID     json.Number `json:"stationId"`
	StationSeq    json.Number `json:"stationSeq"`
	RemainSeatCnt *int        `json:"remainSeatCnt"`
	StateCd       json.Number `json:"stateCd"`
}

// StationInfo is the station detail response.
type StationInfo struct {
	StationID   json.Number `json:"stationId"`
	StationName string      `json:"stationName"`
	RegionName  string      `json:"regionName"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
}

// StationArrival is one route's arrival prediction at a station.
type StationArrival struct {
	RouteID        json.Number `json:"routeId"`
	RouteName      string      `json:"routeName"`
	RouteTypeCd    json.Number `json:"routeTypeCd"`
	StationID      json.Number `json:"stationId"`
	PredictTime1   json.Number `json:"predictTime1"`
	PredictTime2   json.Number `json:"predictTime2"`
	RemainSeatCnt1 json.Number `json:"remainSeatCnt1"`
	RemainSeatCnt2 json.Number `json:"remainSeatCnt2"`
	LocationNo1    json.Number `json:"locationNo1"`
	LocationNo2    json.Number `json:"locationNo2"`
}
