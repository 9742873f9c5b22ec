package engine

import (
	"context"
	"testing"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories/memory"
)

func newMovementFixture() (*MovementSimulator, *memory.DroneRepository, *memory.MissionRepository, *captureOutput) {
	drones := memory.NewDroneRepository()
	missions := memory.NewMissionRepository()
	out := newCaptureOutput()
	m := NewMovementSimulator(drones, missions, testConfig(), NewEmitter(out))
	return m, drones, missions, out
}

func seedMission(t *testing.T, repo *memory.MissionRepository, droneID int64, status string) *models.Mission {
	t.Helper()
	mission := &models.Mission{
		OrderID:  41,
		DroneID:  droneID,
		Pickup:   testPickup,
		Delivery: testDelivery,
		Status:   status,
	}
	if err := repo.Create(context.Background(), mission); err != nil {
		t.Fatalf("create mission: %v", err)
	}
	return mission
}

// Runs the full flight end to end: base (10.00, 106.00), pickup
// ~1.11 km north, delivery another ~1.11 km north, 40 km/h on 2-second ticks.
func TestMovement_FullDeliveryLifecycle(t *testing.T) {
	m, drones, missions, out := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 100, models.DroneStateDelivering)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusAssigned)

	var sawInProgress, sawReturning bool
	for i := 0; i < 1000; i++ {
		if err := m.Tick(ctx, mission.ID); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		cur, _ := missions.GetByID(ctx, mission.ID)
		d, _ := drones.GetByID(ctx, drone.ID)
		if cur.Status == models.MissionStatusInProgress {
			sawInProgress = true
		}
		if d.State == models.DroneStateReturning {
			sawReturning = true
		}
		if cur.Terminal() {
			break
		}
	}

	final, _ := missions.GetByID(ctx, mission.ID)
	if final.Status != models.MissionStatusCompleted {
		t.Fatalf("mission status = %s, want completed", final.Status)
	}
	if final.CompletedAt.IsZero() {
		t.Errorf("completion timestamp not set")
	}
	if !sawInProgress || !sawReturning {
		t.Errorf("lifecycle incomplete: inProgress=%v returning=%v", sawInProgress, sawReturning)
	}

	d, _ := drones.GetByID(ctx, drone.ID)
	// ~4.45 km flown at 2%/km leaves the drone around 91-93%.
	if d.Battery < 90 || d.Battery > 95 {
		t.Errorf("final battery = %d, want ~92", d.Battery)
	}
	if d.State != models.DroneStateIdle {
		t.Errorf("final drone state = %s, want idle (battery above charge threshold)", d.State)
	}
	if out.count("delivery_completed_events") != 1 {
		t.Errorf("delivery completed events = %d, want 1", out.count("delivery_completed_events"))
	}

	// Further ticks on the terminal mission must not re-complete it.
	for i := 0; i < 5; i++ {
		if err := m.Tick(ctx, mission.ID); err != nil {
			t.Fatalf("post-completion tick: %v", err)
		}
	}
	if out.count("delivery_completed_events") != 1 {
		t.Errorf("completion re-triggered: %d events", out.count("delivery_completed_events"))
	}
}

func TestMovement_BatteryStaysWithinBounds(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 3, models.DroneStateDelivering)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusAssigned)

	for i := 0; i < 500; i++ {
		if err := m.Tick(ctx, mission.ID); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		d, _ := drones.GetByID(ctx, drone.ID)
		if d.Battery < 0 || d.Battery > 100 {
			t.Fatalf("battery out of bounds at tick %d: %d", i, d.Battery)
		}
		cur, _ := missions.GetByID(ctx, mission.ID)
		if cur.Terminal() {
			return
		}
	}
	t.Fatalf("mission never reached a terminal status")
}

func TestMovement_ArrivalAtPickupStartsDelivery(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 100, models.DroneStateDelivering)
	drone.CurrentLocation = testPickup
	if err := drones.Save(ctx, drone); err != nil {
		t.Fatalf("save: %v", err)
	}
	mission := seedMission(t, missions, drone.ID, models.MissionStatusAssigned)

	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	cur, _ := missions.GetByID(ctx, mission.ID)
	if cur.Status != models.MissionStatusInProgress {
		t.Errorf("mission status = %s, want in_progress", cur.Status)
	}
	d, _ := drones.GetByID(ctx, drone.ID)
	if d.State != models.DroneStateDelivering {
		t.Errorf("drone state = %s, want delivering", d.State)
	}
}

func TestMovement_ArrivalAtDeliveryTurnsAround(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 100, models.DroneStateDelivering)
	drone.CurrentLocation = testDelivery
	if err := drones.Save(ctx, drone); err != nil {
		t.Fatalf("save: %v", err)
	}
	mission := seedMission(t, missions, drone.ID, models.MissionStatusInProgress)

	// Carried-over consumption must survive the turnaround; only terminal
	// handling resets it.
	m.acc.Add(drone.ID, 0.7)

	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	d, _ := drones.GetByID(ctx, drone.ID)
	if d.State != models.DroneStateReturning {
		t.Errorf("drone state = %s, want returning", d.State)
	}
	if rem := m.acc.pendingFor(drone.ID); rem < 0.69 || rem > 0.71 {
		t.Errorf("accumulator reset at delivery arrival: %v", rem)
	}
}

func TestMovement_ArrivalAtBaseWithLowBatteryCharges(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 40, models.DroneStateReturning)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusInProgress)

	m.acc.Add(drone.ID, 0.9)
	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	cur, _ := missions.GetByID(ctx, mission.ID)
	if cur.Status != models.MissionStatusCompleted {
		t.Errorf("mission status = %s, want completed", cur.Status)
	}
	d, _ := drones.GetByID(ctx, drone.ID)
	if d.State != models.DroneStateCharging {
		t.Errorf("drone state = %s, want charging at 40%%", d.State)
	}
	if rem := m.acc.pendingFor(drone.ID); rem != 0 {
		t.Errorf("accumulator not cleared at mission end: %v", rem)
	}
}

func TestMovement_DepletionOutboundCancelsMission(t *testing.T) {
	m, drones, missions, out := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 0, models.DroneStateDelivering)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusAssigned)

	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	cur, _ := missions.GetByID(ctx, mission.ID)
	if cur.Status != models.MissionStatusCancelled {
		t.Errorf("mission status = %s, want cancelled", cur.Status)
	}
	d, _ := drones.GetByID(ctx, drone.ID)
	if d.State != models.DroneStateMaintenance {
		t.Errorf("drone state = %s, want maintenance", d.State)
	}
	if d.Battery != 0 {
		t.Errorf("battery = %d, want clamped to 0", d.Battery)
	}
	if out.count("mission_cancelled_events") != 1 {
		t.Errorf("cancellation events = %d, want 1", out.count("mission_cancelled_events"))
	}
}

// Failure while inbound is not a mission failure: the parcel was already
// delivered.
func TestMovement_DepletionWhileReturningStillCompletes(t *testing.T) {
	m, drones, missions, out := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 0, models.DroneStateReturning)
	drone.CurrentLocation = testDelivery
	if err := drones.Save(ctx, drone); err != nil {
		t.Fatalf("save: %v", err)
	}
	mission := seedMission(t, missions, drone.ID, models.MissionStatusInProgress)

	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	cur, _ := missions.GetByID(ctx, mission.ID)
	if cur.Status != models.MissionStatusCompleted {
		t.Errorf("mission status = %s, want completed", cur.Status)
	}
	if cur.CompletedAt.IsZero() {
		t.Errorf("completion timestamp not set")
	}
	d, _ := drones.GetByID(ctx, drone.ID)
	if d.State != models.DroneStateMaintenance {
		t.Errorf("drone state = %s, want maintenance", d.State)
	}
	if out.count("delivery_completed_events") != 1 {
		t.Errorf("completion events = %d, want 1", out.count("delivery_completed_events"))
	}
}

func TestMovement_DepletionByDeductionMidLeg(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	// Inflate consumption so a single ~22 m step drains more than the
	// remaining 1%.
	m.cfg = testConfig()
	m.cfg.ConsumptionPerKm = 100

	drone := seedDrone(t, drones, testBase, 1, models.DroneStateDelivering)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusAssigned)

	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	cur, _ := missions.GetByID(ctx, mission.ID)
	if cur.Status != models.MissionStatusCancelled {
		t.Errorf("mission status = %s, want cancelled", cur.Status)
	}
	d, _ := drones.GetByID(ctx, drone.ID)
	if d.Battery != 0 || d.State != models.DroneStateMaintenance {
		t.Errorf("drone = battery %d state %s, want 0/maintenance", d.Battery, d.State)
	}
}

func TestMovement_SkipsDronesNotInFlight(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 80, models.DroneStateIdle)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusAssigned)

	m.acc.Add(drone.ID, 0.5)
	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}

	d, _ := drones.GetByID(ctx, drone.ID)
	if d.Battery != 80 || d.State != models.DroneStateIdle {
		t.Errorf("idle drone mutated by movement tick: %+v", d)
	}
	if rem := m.acc.pendingFor(drone.ID); rem != 0 {
		t.Errorf("accumulator not cleared for grounded drone: %v", rem)
	}
}

func TestMovement_UnknownMissionIsSkippedNotFatal(t *testing.T) {
	m, _, _, _ := newMovementFixture()
	if err := m.Tick(context.Background(), 9999); err != nil {
		t.Fatalf("unknown mission id must not propagate an error: %v", err)
	}
}

func TestMovement_TerminalMissionClearsAccumulator(t *testing.T) {
	m, drones, missions, _ := newMovementFixture()
	ctx := context.Background()

	drone := seedDrone(t, drones, testBase, 80, models.DroneStateDelivering)
	mission := seedMission(t, missions, drone.ID, models.MissionStatusCancelled)

	m.acc.Add(drone.ID, 0.5)
	if err := m.Tick(ctx, mission.ID); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if rem := m.acc.pendingFor(drone.ID); rem != 0 {
		t.Errorf("accumulator kept for terminal mission: %v", rem)
	}
	d, _ := drones.GetByID(ctx, drone.ID)
	if d.CurrentLocation != testBase {
		t.Errorf("drone moved for a terminal mission: %+v", d.CurrentLocation)
	}
}
