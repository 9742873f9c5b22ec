package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories/memory"
)

// captureOutput records emitted messages per topic for assertions.
type captureOutput struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newCaptureOutput() *captureOutput {
	return &captureOutput{messages: make(map[string][][]byte)}
}

func (c *captureOutput) WriteMessage(topic string, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[topic] = append(c.messages[topic], msg)
	return nil
}

func (c *captureOutput) Close() error { return nil }

func (c *captureOutput) count(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages[topic])
}

func testConfig() *models.Config {
	return &models.Config{
		DroneSpeedKmh:         40.0,
		ConsumptionPerKm:      2.0,
		BatteryReservePercent: 10.0,
		ArrivalThresholdKm:    0.05,
		MovementTickSeconds:   2,
		BatteryTickSeconds:    5,
		ChargeRatePercent:     5,
		IdleDrainPercent:      0.004,
		LowBatteryThreshold:   20,
		ChargeBelowPercent:    50,
	}
}

func seedDrone(t *testing.T, repo *memory.DroneRepository, base models.Location, battery int, state string) *models.Drone {
	t.Helper()
	b := base
	drone := &models.Drone{
		SerialNumber:    "DRN-TEST",
		Battery:         battery,
		State:           state,
		CurrentLocation: base,
		BaseLocation:    &b,
		CapacityKg:      5,
	}
	if err := repo.Create(context.Background(), drone); err != nil {
		t.Fatalf("create drone: %v", err)
	}
	return drone
}
