package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
)

// BatteryManager charges docked drones and drains parked ones on its own
// schedule. It only ever touches idle and charging drones; in-flight drain is
// the MovementSimulator's job, which keeps each drone's battery owned by
// exactly one scheduler per tick.
type BatteryManager struct {
	drones  repositories.DroneRepository
	cfg     *models.Config
	acc     *accumulatorStore
	emitter *Emitter
}

func NewBatteryManager(drones repositories.DroneRepository, cfg *models.Config, emitter *Emitter) *BatteryManager {
	return &BatteryManager{
		drones:  drones,
		cfg:     cfg,
		acc:     newAccumulatorStore(),
		emitter: emitter,
	}
}

// Tick sweeps all idle and charging drones once. Failures on a single drone
// are logged and do not interrupt the rest of the sweep.
func (b *BatteryManager) Tick(ctx context.Context) error {
	drones, err := b.drones.GetByStates(ctx, models.DroneStateIdle, models.DroneStateCharging)
	if err != nil {
		return fmt.Errorf("loading idle/charging drones: %w", err)
	}

	swept := make(map[int64]bool, len(drones))
	for _, drone := range drones {
		swept[drone.ID] = true
		if err := b.tickDrone(ctx, drone); err != nil {
			log.Printf("Battery tick failed for drone %s: %v", drone.SerialNumber, err)
		}
	}

	// A drone that left the idle pool (dispatched, grounded) abandons its
	// drain carry: when it parks again the fraction starts from zero.
	b.acc.Retain(swept)
	return nil
}

// tickDrone works on the snapshot loaded by Tick. The dispatcher may reserve
// an idle drone between that snapshot and the write-back, so the save is
// conditional on the state being unchanged; a lost race just skips the drone
// until the next sweep.
func (b *BatteryManager) tickDrone(ctx context.Context, drone *models.Drone) error {
	switch drone.State {
	case models.DroneStateCharging:
		// Charging and idle-drain accumulators are mutually exclusive.
		b.acc.Clear(drone.ID)
		fullyCharged := false
		drone.Battery += b.cfg.ChargeRatePercent
		if drone.Battery >= 100 {
			drone.Battery = 100
			drone.State = models.DroneStateIdle
			fullyCharged = true
		}
		drone.LastUpdateTime = time.Now()
		saved, err := b.drones.SaveIfState(ctx, drone, models.DroneStateCharging)
		if err != nil {
			return err
		}
		if saved && fullyCharged {
			log.Printf("Drone %s fully charged", drone.SerialNumber)
		}
		return nil

	case models.DroneStateIdle:
		whole := b.acc.Add(drone.ID, b.cfg.IdleDrainPercent)
		if whole == 0 {
			return nil
		}
		prev := drone.Battery
		drone.Battery -= whole
		if drone.Battery < 0 {
			drone.Battery = 0
		}
		drone.LastUpdateTime = time.Now()
		saved, err := b.drones.SaveIfState(ctx, drone, models.DroneStateIdle)
		if err != nil {
			return err
		}
		if saved && prev > b.cfg.LowBatteryThreshold && drone.Battery <= b.cfg.LowBatteryThreshold {
			log.Printf("Drone %s battery low: %d%%", drone.SerialNumber, drone.Battery)
			b.emitter.LowBattery(drone)
		}
		return nil
	}
	return nil
}
