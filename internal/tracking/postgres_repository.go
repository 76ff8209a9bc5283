package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSnapshotNotFound indicates no snapshot exists for the driver.
var ErrSnapshotNotFound = errors.New("driver snapshot not found")

// Snapshot is a persisted driver position.
type Snapshot struct {
	DriverID       string
	OrganizationID string
	RouteID        string
	Lat            float64
	Lng            float64
	Speed          float64
	Heading        float64
	Status         string
	ReportedAt     time.Time
	UpdatedAt      time.Time
}

// SnapshotRepository persists the latest position per driver.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a repository backed by the given pool.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Upsert stores a transmission as the driver's current snapshot. Older
// reports never overwrite newer ones, mirroring the in-memory feed.
func (r *SnapshotRepository) Upsert(ctx context.Context, t Transmission) error {
	query := `
		INSERT INTO driver_snapshots (
			driver_id, organization_id, route_id,
			lat, lng, speed, heading, status, reported_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (driver_id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			route_id = EXCLUDED.route_id,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			speed = EXCLUDED.speed,
			heading = EXCLUDED.heading,
			status = EXCLUDED.status,
			reported_at = EXCLUDED.reported_at,
			updated_at = now()
		WHERE driver_snapshots.reported_at <= EXCLUDED.reported_at
	`

	_, err := r.pool.Exec(ctx, query,
		t.DriverID, t.OrganizationID, t.RouteID,
		t.Location.Lat, t.Location.Lng, t.Location.Speed, t.Location.Heading,
		t.Status, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upserting driver snapshot: %w", err)
	}
	return nil
}

// Get returns the snapshot for one driver.
func (r *SnapshotRepository) Get(ctx context.Context, driverID string) (*Snapshot, error) {
	query := `
		SELECT driver_id, organization_id, route_id,
		       lat, lng, speed, heading, status, reported_at, updated_at
		FROM driver_snapshots
		WHERE driver_id = $1
	`

	var s Snapshot
	err := r.pool.QueryRow(ctx, query, driverID).Scan(
		&s.DriverID, &s.OrganizationID, &s.RouteID,
		&s.Lat, &s.Lng, &s.Speed, &s.Heading, &s.Status, &s.ReportedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("querying driver snapshot: %w", err)
	}
	return &s, nil
}

// ListByOrganization returns every snapshot in the tenant, newest first.
func (r *SnapshotRepository) ListByOrganization(ctx context.Context, organizationID string) ([]Snapshot, error) {
	query := `
		SELECT driver_id, organization_id, route_id,
		       lat, lng, speed, heading, status, reported_at, updated_at
		FROM driver_snapshots
		WHERE organization_id = $1
		ORDER BY reported_at DESC
	`

	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("querying driver snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.DriverID, &s.OrganizationID, &s.RouteID,
			&s.Lat, &s.Lng, &s.Speed, &s.Heading, &s.Status, &s.ReportedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning driver snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating driver snapshots: %w", err)
	}
	return snapshots, nil
}
