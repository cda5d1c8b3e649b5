// README: Completed-trip archive backed by PostgreSQL (JSONB payload per trip).
package trip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"routetrip/internal/types"
)

type ArchiveStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewArchiveStore(db *pgxpool.Pool) *ArchiveStore {
	return &ArchiveStore{db: db, now: time.Now}
}

// Archive upserts the trip; archiving the same trip twice keeps one row.
func (s *ArchiveStore) Archive(ctx context.Context, t RouteTrip) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO route_trips (trip_id, route_name, trip_status, payload, archived_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (trip_id) DO UPDATE SET
            route_name = EXCLUDED.route_name,
            trip_status = EXCLUDED.trip_status,
            payload = EXCLUDED.payload,
            updated_at = EXCLUDED.updated_at`,
		string(t.TripID),
		t.RouteName,
		string(t.TripStatus),
		payload,
		s.now(),
		t.UpdatedAt,
	)
	return err
}

func (s *ArchiveStore) Get(ctx context.Context, id types.ID) (RouteTrip, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT payload FROM route_trips WHERE trip_id = $1`, string(id)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return RouteTrip{}, ErrTripNotFound
	}
	if err != nil {
		return RouteTrip{}, err
	}
	var t RouteTrip
	if err := json.Unmarshal(payload, &t); err != nil {
		return RouteTrip{}, err
	}
	return t, nil
}

// List returns the most recently archived trips first.
func (s *ArchiveStore) List(ctx context.Context, limit int) ([]RouteTrip, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
        SELECT payload FROM route_trips
        ORDER BY archived_at DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RouteTrip{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t RouteTrip
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
