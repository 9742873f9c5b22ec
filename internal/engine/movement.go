package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/chrisdamba/dronesim/internal/geo"
	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
)

// MovementSimulator advances one mission's drone per tick: flies it towards
// the current target, drains battery through the accumulator, and drives the
// mission/drone state machines on arrival or depletion. It owns drones in the
// delivering and returning states; idle and charging drones belong to the
// BatteryManager.
type MovementSimulator struct {
	drones   repositories.DroneRepository
	missions repositories.MissionRepository
	cfg      *models.Config
	acc      *accumulatorStore
	emitter  *Emitter
}

func NewMovementSimulator(drones repositories.DroneRepository, missions repositories.MissionRepository, cfg *models.Config, emitter *Emitter) *MovementSimulator {
	return &MovementSimulator{
		drones:   drones,
		missions: missions,
		cfg:      cfg,
		acc:      newAccumulatorStore(),
		emitter:  emitter,
	}
}

// Tick runs one movement step for the mission. Unknown ids are logged and
// skipped so one broken mission cannot stall the sweep; persistence failures
// are returned to the scheduler.
func (m *MovementSimulator) Tick(ctx context.Context, missionID int64) error {
	mission, err := m.missions.GetByID(ctx, missionID)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Printf("Movement tick skipped: mission %d not found", missionID)
		return nil
	}
	if err != nil {
		return err
	}

	drone, err := m.drones.GetByID(ctx, mission.DroneID)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Printf("Movement tick skipped: drone %d not found for mission %d", mission.DroneID, missionID)
		return nil
	}
	if err != nil {
		return err
	}

	if !models.InFlight(drone.State) {
		m.acc.Clear(drone.ID)
		return nil
	}
	if drone.Battery <= 0 {
		return m.deplete(ctx, mission, drone)
	}

	target := resolveTarget(mission, drone)
	if target == nil {
		m.acc.Clear(drone.ID)
		return nil
	}

	if geo.DistanceKm(drone.CurrentLocation, *target) <= m.cfg.ArrivalThresholdKm {
		return m.arrive(ctx, mission, drone)
	}

	next := geo.DestinationPoint(drone.CurrentLocation, *target, m.cfg.DroneSpeedKmh, m.cfg.MovementTickSeconds)
	traveled := geo.DistanceKm(drone.CurrentLocation, next)
	drone.CurrentLocation = next
	drone.LastUpdateTime = time.Now()

	if whole := m.acc.Add(drone.ID, traveled*m.cfg.ConsumptionPerKm); whole > 0 {
		drone.Battery -= whole
		if drone.Battery <= 0 {
			return m.deplete(ctx, mission, drone)
		}
	}

	if err := m.drones.Save(ctx, drone); err != nil {
		return err
	}
	if m.cfg.EmitTelemetry {
		m.emitter.Telemetry(drone, mission)
	}
	return nil
}

// resolveTarget picks the waypoint the drone is flying towards. A returning
// drone heads home regardless of mission status. For an in-progress mission
// the drone state decides between delivery and pickup, which covers the
// moment right after pickup arrival before the state flip is observable.
func resolveTarget(mission *models.Mission, drone *models.Drone) *models.Location {
	if drone.State == models.DroneStateReturning {
		return drone.BaseLocation
	}
	switch mission.Status {
	case models.MissionStatusAssigned:
		p := mission.Pickup
		return &p
	case models.MissionStatusInProgress:
		if drone.State == models.DroneStateDelivering {
			d := mission.Delivery
			return &d
		}
		p := mission.Pickup
		return &p
	}
	return nil
}

// arrive decides which anchor the drone reached by proximity, checking
// pickup, then delivery, then base.
func (m *MovementSimulator) arrive(ctx context.Context, mission *models.Mission, drone *models.Drone) error {
	at := func(anchor models.Location) bool {
		return geo.DistanceKm(drone.CurrentLocation, anchor) <= m.cfg.ArrivalThresholdKm
	}
	now := time.Now()

	switch {
	case at(mission.Pickup):
		mission.Status = models.MissionStatusInProgress
		if drone.State != models.DroneStateDelivering {
			drone.State = models.DroneStateDelivering
		}
		drone.LastUpdateTime = now
		if err := m.missions.Save(ctx, mission); err != nil {
			return err
		}
		return m.drones.Save(ctx, drone)

	case at(mission.Delivery):
		drone.State = models.DroneStateReturning
		drone.LastUpdateTime = now
		// The consumption accumulator survives this transition: only
		// terminal-mission handling resets it.
		return m.drones.Save(ctx, drone)

	case drone.BaseLocation != nil && at(*drone.BaseLocation):
		mission.Status = models.MissionStatusCompleted
		mission.CompletedAt = now
		m.acc.Clear(drone.ID)
		if drone.Battery < m.cfg.ChargeBelowPercent {
			drone.State = models.DroneStateCharging
		} else {
			drone.State = models.DroneStateIdle
		}
		drone.LastUpdateTime = now
		if err := m.missions.Save(ctx, mission); err != nil {
			return err
		}
		if err := m.drones.Save(ctx, drone); err != nil {
			return err
		}
		log.Printf("Mission %d completed: drone %s back at base with %d%% battery",
			mission.ID, drone.SerialNumber, drone.Battery)
		m.emitter.DeliveryCompleted(mission, drone)
		return nil
	}

	return nil
}

// deplete handles a battery that hit zero mid-flight. The drone is grounded
// for maintenance. A drone that was already returning has delivered its
// order, so the mission still completes; depletion on the outbound legs
// cancels it.
func (m *MovementSimulator) deplete(ctx context.Context, mission *models.Mission, drone *models.Drone) error {
	priorState := drone.State
	now := time.Now()

	drone.Battery = 0
	drone.State = models.DroneStateMaintenance
	drone.LastUpdateTime = now
	m.acc.Clear(drone.ID)

	completed := priorState == models.DroneStateReturning
	if completed {
		mission.Status = models.MissionStatusCompleted
		mission.CompletedAt = now
	} else {
		mission.Status = models.MissionStatusCancelled
	}

	log.Printf("ERROR: drone %s battery depleted mid-flight at (%.5f, %.5f); mission %d %s, drone grounded for maintenance",
		drone.SerialNumber, drone.CurrentLocation.Lat, drone.CurrentLocation.Lon, mission.ID, mission.Status)

	if err := m.drones.Save(ctx, drone); err != nil {
		return err
	}
	if err := m.missions.Save(ctx, mission); err != nil {
		return err
	}

	if completed {
		m.emitter.DeliveryCompleted(mission, drone)
	} else {
		m.emitter.MissionCancelled(mission, drone)
	}
	return nil
}
