package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/chrisdamba/dronesim/internal/geo"
	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
)

// Assignment pairs a freshly created mission with the drone reserved for it.
type Assignment struct {
	Mission *models.Mission
	Drone   *models.Drone
}

// Dispatcher reserves a feasible drone for a pickup/delivery route. It is a
// greedy feasibility check, not an optimizer: the first idle drone with
// enough charge for the full round trip wins, in registry order.
type Dispatcher struct {
	drones   repositories.DroneRepository
	missions repositories.MissionRepository
	cfg      *models.Config
	emitter  *Emitter

	// mu spans the idle scan and the reservation so two concurrent dispatch
	// calls can never select the same drone. The reservation itself is a
	// state-conditional save, guarding against the battery sweep mutating
	// the drone from its own snapshot at the same time.
	mu sync.Mutex
}

func NewDispatcher(drones repositories.DroneRepository, missions repositories.MissionRepository, cfg *models.Config, emitter *Emitter) *Dispatcher {
	return &Dispatcher{drones: drones, missions: missions, cfg: cfg, emitter: emitter}
}

// Dispatch finds an idle drone able to fly base -> pickup -> delivery -> base
// on its current charge, creates the mission and flips the drone to
// delivering. A (nil, nil) return means no drone is available, which is a
// normal outcome, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, pickup, delivery models.Location, orderID int64) (*Assignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idle, err := d.drones.GetByStates(ctx, models.DroneStateIdle)
	if err != nil {
		return nil, fmt.Errorf("loading idle drones: %w", err)
	}

	for _, drone := range idle {
		if drone.BaseLocation == nil {
			log.Printf("Skipping drone %s: no base location configured", drone.SerialNumber)
			continue
		}

		roundTrip := geo.DistanceKm(*drone.BaseLocation, pickup) +
			geo.DistanceKm(pickup, delivery) +
			geo.DistanceKm(delivery, *drone.BaseLocation)
		required := d.requiredBattery(roundTrip)
		if float64(drone.Battery) < required {
			continue
		}

		now := time.Now()
		drone.State = models.DroneStateDelivering
		drone.LastUpdateTime = now
		reserved, err := d.drones.SaveIfState(ctx, drone, models.DroneStateIdle)
		if err != nil {
			return nil, fmt.Errorf("reserving drone %d: %w", drone.ID, err)
		}
		if !reserved {
			// The drone changed state since the scan; pass it over.
			continue
		}

		mission := &models.Mission{
			OrderID:          orderID,
			DroneID:          drone.ID,
			Pickup:           pickup,
			Delivery:         delivery,
			Status:           models.MissionStatusAssigned,
			DistanceKm:       roundTrip,
			EstimatedMinutes: int(math.Ceil(roundTrip / d.cfg.DroneSpeedKmh * 60)),
			StartedAt:        now,
		}
		if err := d.missions.Create(ctx, mission); err != nil {
			drone.State = models.DroneStateIdle
			if _, rbErr := d.drones.SaveIfState(ctx, drone, models.DroneStateDelivering); rbErr != nil {
				log.Printf("Failed to release drone %s after mission create error: %v", drone.SerialNumber, rbErr)
			}
			return nil, fmt.Errorf("creating mission for order %d: %w", orderID, err)
		}

		log.Printf("Assigned drone %s to order %d: %.2f km round trip, ETA %d min",
			drone.SerialNumber, orderID, roundTrip, mission.EstimatedMinutes)
		d.emitter.DroneAssigned(mission, drone)

		return &Assignment{Mission: mission, Drone: drone}, nil
	}

	return nil, nil
}

// requiredBattery is the feasibility bar for a round trip: consumption for
// the whole route plus a fixed reserve.
func (d *Dispatcher) requiredBattery(roundTripKm float64) float64 {
	return roundTripKm*d.cfg.ConsumptionPerKm + d.cfg.BatteryReservePercent
}
