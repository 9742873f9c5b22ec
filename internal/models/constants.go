package models

const (
	DroneStateIdle        = "idle"
	DroneStateCharging    = "charging"
	DroneStateDelivering  = "delivering"
	DroneStateReturning   = "returning"
	DroneStateMaintenance = "maintenance"

	MissionStatusAssigned   = "assigned"
	MissionStatusInProgress = "in_progress"
	MissionStatusCompleted  = "completed"
	MissionStatusCancelled  = "cancelled"

	EventDroneAssigned     = "DroneAssigned"
	EventDeliveryCompleted = "DeliveryCompleted"
	EventMissionCancelled  = "MissionCancelled"
	EventLowBattery        = "LowBattery"
	EventDroneTelemetry    = "DroneTelemetry"
)

// InFlight reports whether a drone state is owned by the movement simulator.
// Battery drain for these states is accounted per movement tick, never by the
// charging sweep.
func InFlight(state string) bool {
	return state == DroneStateDelivering || state == DroneStateReturning
}
