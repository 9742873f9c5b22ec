// Package memory provides in-process repository implementations used by the
// default simulation mode and by tests. They honour the same contract as the
// postgres adapters: load/save by id, query by state.
package memory

import (
	"context"
	"sync"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
)

type DroneRepository struct {
	mu     sync.RWMutex
	drones map[int64]*models.Drone
	order  []int64
	nextID int64
}

func NewDroneRepository() *DroneRepository {
	return &DroneRepository{drones: make(map[int64]*models.Drone)}
}

func (r *DroneRepository) Create(ctx context.Context, drone *models.Drone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	drone.ID = r.nextID
	r.drones[drone.ID] = copyDrone(drone)
	r.order = append(r.order, drone.ID)
	return nil
}

func (r *DroneRepository) BulkCreate(ctx context.Context, drones []*models.Drone) error {
	for _, d := range drones {
		if err := r.Create(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *DroneRepository) GetByID(ctx context.Context, id int64) (*models.Drone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drones[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyDrone(d), nil
}

func (r *DroneRepository) GetByStates(ctx context.Context, states ...string) ([]*models.Drone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[string]bool, len(states))
	for _, s := range states {
		wanted[s] = true
	}
	var out []*models.Drone
	for _, id := range r.order {
		if d := r.drones[id]; wanted[d.State] {
			out = append(out, copyDrone(d))
		}
	}
	return out, nil
}

func (r *DroneRepository) GetAll(ctx context.Context) ([]*models.Drone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Drone, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyDrone(r.drones[id]))
	}
	return out, nil
}

func (r *DroneRepository) Save(ctx context.Context, drone *models.Drone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drones[drone.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.drones[drone.ID] = copyDrone(drone)
	return nil
}

func (r *DroneRepository) SaveIfState(ctx context.Context, drone *models.Drone, fromState string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drones[drone.ID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if stored.State != fromState {
		return false, nil
	}
	r.drones[drone.ID] = copyDrone(drone)
	return true, nil
}

func (r *DroneRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drones), nil
}

func (r *DroneRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drones = make(map[int64]*models.Drone)
	r.order = nil
	r.nextID = 0
	return nil
}

type MissionRepository struct {
	mu       sync.RWMutex
	missions map[int64]*models.Mission
	order    []int64
	nextID   int64
}

func NewMissionRepository() *MissionRepository {
	return &MissionRepository{missions: make(map[int64]*models.Mission)}
}

func (r *MissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	mission.ID = r.nextID
	r.missions[mission.ID] = copyMission(mission)
	r.order = append(r.order, mission.ID)
	return nil
}

func (r *MissionRepository) GetByID(ctx context.Context, id int64) (*models.Mission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.missions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyMission(m), nil
}

func (r *MissionRepository) ListActive(ctx context.Context) ([]*models.Mission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Mission
	for _, id := range r.order {
		if m := r.missions[id]; !m.Terminal() {
			out = append(out, copyMission(m))
		}
	}
	return out, nil
}

func (r *MissionRepository) Save(ctx context.Context, mission *models.Mission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.missions[mission.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.missions[mission.ID] = copyMission(mission)
	return nil
}

// Repositories hand out copies so callers can mutate a loaded record freely
// and make the change visible only through Save, the way the postgres
// adapters behave.
func copyDrone(d *models.Drone) *models.Drone {
	c := *d
	if d.BaseLocation != nil {
		base := *d.BaseLocation
		c.BaseLocation = &base
	}
	return &c
}

func copyMission(m *models.Mission) *models.Mission {
	c := *m
	return &c
}
