package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"seatwatch.gbus.kr/internal/models"
)

// Store wraps the sqlite database holding the route catalogue, raw seat
// observations and the aggregated per-slot statistics.
type Store struct {
	*sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bus_routes (
			route_id          TEXT PRIMARY KEY,
			route_name        TEXT,
			route_type        TEXT,
			route_type_name   TEXT,
			start_stop_name   TEXT,
			end_stop_name     TEXT,
			turn_stop_id      TEXT,
			turn_stop_name    TEXT,
			company           TEXT,
			updated_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS bus_stops (
			route_id          TEXT,
			station_id        TEXT,
			station_seq       BIGINT,
			station_name      TEXT,
			lat               DOUBLE,
			lon               DOUBLE,
			PRIMARY KEY (route_id, station_id, station_seq)
		);
		CREATE TABLE IF NOT EXISTS bus_locations (
			location_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			route_id          TEXT,
			vehicle_id        TEXT,
			station_id        TEXT,
			station_name      TEXT,
			remain_seats      BIGINT,
			observed_at       TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_bus_locations_observed_at
			ON bus_locations (observed_at);
		CREATE INDEX IF NOT EXISTS idx_bus_locations_vehicle
			ON bus_locations (vehicle_id, observed_at);
		CREATE TABLE IF NOT EXISTS seat_stats (
			route_id          TEXT,
			station_id        TEXT,
			day_of_week       BIGINT,
			hour_of_day       BIGINT,
			station_name      TEXT,
			avg_seats         DOUBLE,
			samples_count     BIGINT,
			updated_at        TIMESTAMP,
			PRIMARY KEY (route_id, station_id, day_of_week, hour_of_day)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &Store{db}, nil
}

// UpsertRoute inserts a route or refreshes its attributes if it already
// exists. The route id never changes once assigned upstream.
func (s *Store) UpsertRoute(r models.Route) error {
	_, err := s.Exec(`
		INSERT INTO bus_routes (
			route_id, route_name, route_type, route_type_name,
			start_stop_name, end_stop_name, turn_stop_id, turn_stop_name,
			company, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (route_id) DO UPDATE SET
			route_name      = excluded.route_name,
			route_type      = excluded.route_type,
			route_type_name = excluded.route_type_name,
			start_stop_name = excluded.start_stop_name,
			end_stop_name   = excluded.end_stop_name,
			turn_stop_id    = excluded.turn_stop_id,
			turn_stop_name  = excluded.turn_stop_name,
			company         = excluded.company,
			updated_at      = CURRENT_TIMESTAMP`,
		r.ID, r.Name, r.RouteType, r.RouteTypeName,
		r.StartStopName, r.EndStopName, r.TurnStopID, r.TurnStopName,
		r.Company,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert route %s: %v", r.ID, err)
	}
	return nil
}

func (s *Store) Routes() ([]models.Route, error) {
	rows, err := s.Query(`
		SELECT route_id, route_name, route_type, route_type_name,
		       start_stop_name, end_stop_name, turn_stop_id, turn_stop_name,
		       company
		FROM bus_routes
		ORDER BY route_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(
			&r.ID, &r.Name, &r.RouteType, &r.RouteTypeName,
			&r.StartStopName, &r.EndStopName, &r.TurnStopID, &r.TurnStopName,
			&r.Company,
		); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// Route fetches one route by id, or nil when it is not catalogued.
func (s *Store) Route(id string) (*models.Route, error) {
	var r models.Route
	err := s.QueryRow(`
		SELECT route_id, route_name, route_type, route_type_name,
		       start_stop_name, end_stop_name, turn_stop_id, turn_stop_name,
		       company
		FROM bus_routes
		WHERE route_id = ?`, id).Scan(
		&r.ID, &r.Name, &r.RouteType, &r.RouteTypeName,
		&r.StartStopName, &r.EndStopName, &r.TurnStopID, &r.TurnStopName,
		&r.Company,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RouteIDs returns all catalogued route ids in ascending order. Grouping for
// the polling schedule relies on this ordering being stable between cycles.
func (s *Store) RouteIDs() ([]string, error) {
	rows, err := s.Query(`SELECT route_id FROM bus_routes ORDER BY route_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountRoutes() (int, error) {
	var n int
	err := s.QueryRow(`SELECT COUNT(*) FROM bus_routes`).Scan(&n)
	return n, err
}

func (s *Store) InsertStop(stop models.Stop) error {
	_, err := s.Exec(`
		INSERT INTO bus_stops (route_id, station_id, station_seq, station_name, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (route_id, station_id, station_seq) DO UPDATE SET
			station_name = excluded.station_name,
			lat          = excluded.lat,
			lon          = excluded.lon`,
		stop.RouteID, stop.StationID, stop.Seq, stop.Name, stop.Lat, stop.Lon,
	)
	return err
}

// ReplaceStops swaps a route's stop sequence for a fresh one in a single
// transaction, so readers never see a half-written catalogue.
func (s *Store) ReplaceStops(routeID string, stops []models.Stop) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM bus_stops WHERE route_id = ?`, routeID); err != nil {
		return err
	}
	for _, stop := range stops {
		_, err := tx.Exec(`
			INSERT INTO bus_stops (route_id, station_id, station_seq, station_name, lat, lon)
			VALUES (?, ?, ?, ?, ?, ?)`,
			routeID, stop.StationID, stop.Seq, stop.Name, stop.Lat, stop.Lon,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) StopsForRoute(routeID string) ([]models.Stop, error) {
	rows, err := s.Query(`
		SELECT route_id, station_id, station_seq, station_name, lat, lon
		FROM bus_stops
		WHERE route_id = ?
		ORDER BY station_seq`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.RouteID, &st.StationID, &st.Seq, &st.Name, &st.Lat, &st.Lon); err != nil {
			return nil, err
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

// StopName resolves a stop's name from the catalogue, or "" when the stop is
// not known for the route.
func (s *Store) StopName(routeID, stationID string) (string, error) {
	var name string
	err := s.QueryRow(`
		SELECT station_name FROM bus_stops
		WHERE route_id = ? AND station_id = ?
		LIMIT 1`, routeID, stationID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Store) InsertObservation(o models.RawObservation) error {
	_, err := s.Exec(`
		INSERT INTO bus_locations (route_id, vehicle_id, station_id, station_name, remain_seats, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.RouteID, o.VehicleID, o.StopID, o.StopName, o.RemainingSeats, o.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert observation for route %s: %v", o.RouteID, err)
	}
	return nil
}

// ObservationsSince returns raw observations recorded at or after the cutoff,
// oldest first.
func (s *Store) ObservationsSince(cutoff time.Time) ([]models.RawObservation, error) {
	rows, err := s.Query(`
		SELECT location_id, route_id, vehicle_id, station_id, station_name, remain_seats, observed_at
		FROM bus_locations
		WHERE observed_at >= ?
		ORDER BY observed_at`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// ObservationIDsBetween lists observation ids in [from, to), used by the
// retention sweep to pick deletion candidates.
func (s *Store) ObservationIDsBetween(from, to time.Time) ([]int64, error) {
	rows, err := s.Query(`
		SELECT location_id
		FROM bus_locations
		WHERE observed_at >= ? AND observed_at < ?`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) DeleteObservationsBefore(cutoff time.Time) (int, error) {
	res, err := s.Exec(`DELETE FROM bus_locations WHERE observed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) DeleteObservationsByID(ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleted := 0
	for _, id := range ids {
		res, err := tx.Exec(`DELETE FROM bus_locations WHERE location_id = ?`, id)
		if err != nil {
			return deleted, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// BackfillStopName fills in an observation's stop name when a later catalogue
// pass resolves a stop id that was unknown at collection time. Existing names
// are never overwritten.
func (s *Store) BackfillStopName(stopID, name string) (int, error) {
	res, err := s.Exec(`
		UPDATE bus_locations
		SET station_name = ?
		WHERE station_id = ? AND (station_name IS NULL OR station_name = '')`,
		name, stopID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpsertSeatStat folds a batch average into the statistic for key. The read
// and write happen in one transaction so concurrent upserts cannot lose
// samples.
func (s *Store) UpsertSeatStat(key models.StatKey, stopName string, batchAverage float64, batchCount int, now time.Time) error {
	if batchCount <= 0 {
		return nil
	}
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stat := models.SeatStatistic{StatKey: key, StopName: stopName}
	err = tx.QueryRow(`
		SELECT station_name, avg_seats, samples_count
		FROM seat_stats
		WHERE route_id = ? AND station_id = ? AND day_of_week = ? AND hour_of_day = ?`,
		key.RouteID, key.StopID, key.DayOfWeek, key.HourOfDay,
	).Scan(&stat.StopName, &stat.AverageSeats, &stat.SamplesCount)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if stat.StopName == "" {
		stat.StopName = stopName
	}
	stat.Merge(batchAverage, batchCount, now)

	_, err = tx.Exec(`
		INSERT INTO seat_stats (route_id, station_id, day_of_week, hour_of_day, station_name, avg_seats, samples_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (route_id, station_id, day_of_week, hour_of_day) DO UPDATE SET
			station_name  = excluded.station_name,
			avg_seats     = excluded.avg_seats,
			samples_count = excluded.samples_count,
			updated_at    = excluded.updated_at`,
		key.RouteID, key.StopID, key.DayOfWeek, key.HourOfDay,
		stat.StopName, stat.AverageSeats, stat.SamplesCount, stat.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert seat stat for route %s stop %s: %v", key.RouteID, key.StopID, err)
	}
	return tx.Commit()
}

func (s *Store) SeatStatsForRoute(routeID string) ([]models.SeatStatistic, error) {
	rows, err := s.Query(`
		SELECT route_id, station_id, day_of_week, hour_of_day, station_name, avg_seats, samples_count, updated_at
		FROM seat_stats
		WHERE route_id = ?
		ORDER BY station_id, day_of_week, hour_of_day`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.SeatStatistic
	for rows.Next() {
		var st models.SeatStatistic
		if err := rows.Scan(
			&st.RouteID, &st.StopID, &st.DayOfWeek, &st.HourOfDay,
			&st.StopName, &st.AverageSeats, &st.SamplesCount, &st.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) ClearSeatStats() error {
	_, err := s.Exec(`DELETE FROM seat_stats`)
	return err
}

func scanObservations(rows *sql.Rows) ([]models.RawObservation, error) {
	var obs []models.RawObservation
	for rows.Next() {
		var o models.RawObservation
		if err := rows.Scan(&o.ID, &o.RouteID, &o.VehicleID, &o.StopID, &o.StopName, &o.RemainingSeats, &o.ObservedAt); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}
