package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MissionRepository struct {
	pool *pgxpool.Pool
}

func NewMissionRepository(pool *pgxpool.Pool) *MissionRepository {
	return &MissionRepository{pool: pool}
}

const missionColumns = `
        id, order_id, drone_id,
        ST_AsText(pickup::geometry) as pickup,
        ST_AsText(delivery::geometry) as delivery,
        status, distance_km, estimated_minutes, started_at, completed_at
`

func (r *MissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	query := `
        INSERT INTO missions (
            order_id, drone_id, pickup, delivery, status,
            distance_km, estimated_minutes, started_at
        ) VALUES (
            $1, $2,
            ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
            ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
            $7, $8, $9, $10
        )
        RETURNING id
    `
	return r.pool.QueryRow(ctx, query,
		mission.OrderID,
		mission.DroneID,
		mission.Pickup.Lon,
		mission.Pickup.Lat,
		mission.Delivery.Lon,
		mission.Delivery.Lat,
		mission.Status,
		mission.DistanceKm,
		mission.EstimatedMinutes,
		mission.StartedAt,
	).Scan(&mission.ID)
}

func (r *MissionRepository) GetByID(ctx context.Context, id int64) (*models.Mission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id)
	mission, err := scanMission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	return mission, err
}

func (r *MissionRepository) ListActive(ctx context.Context) ([]*models.Mission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE status IN ($1, $2) ORDER BY id`,
		models.MissionStatusAssigned, models.MissionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		mission, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, mission)
	}
	return missions, rows.Err()
}

func (r *MissionRepository) Save(ctx context.Context, mission *models.Mission) error {
	query := `
        UPDATE missions SET
            status = $2,
            completed_at = $3
        WHERE id = $1
    `
	var completedAt *time.Time
	if !mission.CompletedAt.IsZero() {
		completedAt = &mission.CompletedAt
	}
	tag, err := r.pool.Exec(ctx, query, mission.ID, mission.Status, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func scanMission(row pgx.Row) (*models.Mission, error) {
	mission := &models.Mission{}
	var completedAt *time.Time
	err := row.Scan(
		&mission.ID,
		&mission.OrderID,
		&mission.DroneID,
		&mission.Pickup,
		&mission.Delivery,
		&mission.Status,
		&mission.DistanceKm,
		&mission.EstimatedMinutes,
		&mission.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt != nil {
		mission.CompletedAt = *completedAt
	}
	return mission, nil
}
