package repositories

import (
	"context"
	"errors"

	"github.com/chrisdamba/dronesim/internal/models"
)

// ErrNotFound is returned when a drone or mission id is unknown to the store.
var ErrNotFound = errors.New("not found")

type DroneRepository interface {
	Create(ctx context.Context, drone *models.Drone) error
	BulkCreate(ctx context.Context, drones []*models.Drone) error
	GetByID(ctx context.Context, id int64) (*models.Drone, error)
	// GetByStates returns drones in any of the given states, preserving the
	// registry's natural (insertion) order.
	GetByStates(ctx context.Context, states ...string) ([]*models.Drone, error)
	GetAll(ctx context.Context) ([]*models.Drone, error)
	Save(ctx context.Context, drone *models.Drone) error
	// SaveIfState persists the drone only if its stored state still equals
	// fromState, reporting whether the write happened. Callers use it to
	// publish changes computed from a snapshot without overwriting a state
	// transition made by another goroutine in between.
	SaveIfState(ctx context.Context, drone *models.Drone, fromState string) (bool, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

type MissionRepository interface {
	Create(ctx context.Context, mission *models.Mission) error
	GetByID(ctx context.Context, id int64) (*models.Mission, error)
	// ListActive returns missions whose status is not terminal.
	ListActive(ctx context.Context) ([]*models.Mission, error)
	Save(ctx context.Context, mission *models.Mission) error
}
