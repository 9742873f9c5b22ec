package postgres

import (
	"context"
	"errors"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DroneRepository struct {
	pool *pgxpool.Pool
}

func NewDroneRepository(pool *pgxpool.Pool) *DroneRepository {
	return &DroneRepository{pool: pool}
}

const droneColumns = `
        id, serial_number, battery, state,
        ST_X(current_location::geometry) as lon,
        ST_Y(current_location::geometry) as lat,
        ST_X(base_location::geometry) as base_lon,
        ST_Y(base_location::geometry) as base_lat,
        capacity_kg, last_update_time
`

func (r *DroneRepository) Create(ctx context.Context, drone *models.Drone) error {
	query := `
        INSERT INTO drones (
            serial_number, battery, state, current_location, base_location,
            capacity_kg, last_update_time
        ) VALUES (
            $1, $2, $3,
            ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography,
            CASE WHEN $6::float8 IS NULL THEN NULL
                 ELSE ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography END,
            $8, $9
        )
        RETURNING id
    `

	var baseLon, baseLat *float64
	if drone.BaseLocation != nil {
		baseLon = &drone.BaseLocation.Lon
		baseLat = &drone.BaseLocation.Lat
	}

	return r.pool.QueryRow(ctx, query,
		drone.SerialNumber,
		drone.Battery,
		drone.State,
		drone.CurrentLocation.Lon,
		drone.CurrentLocation.Lat,
		baseLon,
		baseLat,
		drone.CapacityKg,
		drone.LastUpdateTime,
	).Scan(&drone.ID)
}

func (r *DroneRepository) BulkCreate(ctx context.Context, drones []*models.Drone) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO drones (
            serial_number, battery, state, current_location, base_location,
            capacity_kg, last_update_time
        ) VALUES (
            $1, $2, $3,
            ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography,
            CASE WHEN $6::float8 IS NULL THEN NULL
                 ELSE ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography END,
            $8, $9
        )
        RETURNING id
    `

	for _, drone := range drones {
		var baseLon, baseLat *float64
		if drone.BaseLocation != nil {
			baseLon = &drone.BaseLocation.Lon
			baseLat = &drone.BaseLocation.Lat
		}
		err = tx.QueryRow(ctx, query,
			drone.SerialNumber,
			drone.Battery,
			drone.State,
			drone.CurrentLocation.Lon,
			drone.CurrentLocation.Lat,
			baseLon,
			baseLat,
			drone.CapacityKg,
			drone.LastUpdateTime,
		).Scan(&drone.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *DroneRepository) GetByID(ctx context.Context, id int64) (*models.Drone, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+droneColumns+` FROM drones WHERE id = $1`, id)
	drone, err := scanDrone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	return drone, err
}

func (r *DroneRepository) GetByStates(ctx context.Context, states ...string) ([]*models.Drone, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+droneColumns+` FROM drones WHERE state = ANY($1) ORDER BY id`, states)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrones(rows)
}

func (r *DroneRepository) GetAll(ctx context.Context) ([]*models.Drone, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+droneColumns+` FROM drones ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrones(rows)
}

func (r *DroneRepository) Save(ctx context.Context, drone *models.Drone) error {
	query := `
        UPDATE drones SET
            battery = $2,
            state = $3,
            current_location = ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography,
            last_update_time = $6
        WHERE id = $1
    `
	tag, err := r.pool.Exec(ctx, query,
		drone.ID,
		drone.Battery,
		drone.State,
		drone.CurrentLocation.Lon,
		drone.CurrentLocation.Lat,
		drone.LastUpdateTime,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *DroneRepository) SaveIfState(ctx context.Context, drone *models.Drone, fromState string) (bool, error) {
	query := `
        UPDATE drones SET
            battery = $2,
            state = $3,
            current_location = ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography,
            last_update_time = $6
        WHERE id = $1 AND state = $7
    `
	tag, err := r.pool.Exec(ctx, query,
		drone.ID,
		drone.Battery,
		drone.State,
		drone.CurrentLocation.Lon,
		drone.CurrentLocation.Lat,
		drone.LastUpdateTime,
		fromState,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DroneRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM drones`).Scan(&count)
	return count, err
}

func (r *DroneRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE drones RESTART IDENTITY CASCADE`)
	return err
}

func scanDrone(row pgx.Row) (*models.Drone, error) {
	drone := &models.Drone{}
	var lon, lat float64
	var baseLon, baseLat *float64
	err := row.Scan(
		&drone.ID,
		&drone.SerialNumber,
		&drone.Battery,
		&drone.State,
		&lon,
		&lat,
		&baseLon,
		&baseLat,
		&drone.CapacityKg,
		&drone.LastUpdateTime,
	)
	if err != nil {
		return nil, err
	}
	drone.CurrentLocation = models.Location{Lat: lat, Lon: lon}
	if baseLon != nil && baseLat != nil {
		drone.BaseLocation = &models.Location{Lat: *baseLat, Lon: *baseLon}
	}
	return drone, nil
}

func scanDrones(rows pgx.Rows) ([]*models.Drone, error) {
	var drones []*models.Drone
	for rows.Next() {
		drone, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		drones = append(drones, drone)
	}
	return drones, rows.Err()
}
