package engine

import (
	"encoding/json"
	"log"
	"time"

	"github.com/chrisdamba/dronesim/internal/models"
)

const (
	topicDroneAssignments  = "drone_assignment_events"
	topicDeliveryCompleted = "delivery_completed_events"
	topicMissionCancelled  = "mission_cancelled_events"
	topicLowBattery        = "low_battery_events"
	topicDroneTelemetry    = "drone_telemetry_events"
)

// BaseEvent carries the fields every emitted event shares.
type BaseEvent struct {
	Timestamp int64  `json:"timestamp"`
	EventType string `json:"eventType"`
	DroneID   int64  `json:"droneId,omitempty"`
	MissionID int64  `json:"missionId,omitempty"`
	OrderID   int64  `json:"orderId,omitempty"`
}

// Emitter publishes lifecycle notifications to the configured output
// destination. Publication is fire-and-forget: failures are logged and never
// fail the tick or dispatch call that produced the event.
type Emitter struct {
	out OutputDestination
}

func NewEmitter(out OutputDestination) *Emitter {
	return &Emitter{out: out}
}

func (e *Emitter) emit(topic string, event interface{}) {
	if e == nil || e.out == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error serializing event for topic %s: %v", topic, err)
		return
	}
	if err := e.out.WriteMessage(topic, data); err != nil {
		log.Printf("Failed to write message to topic %s: %v", topic, err)
	}
}

func (e *Emitter) baseEvent(eventType string, droneID, missionID, orderID int64) BaseEvent {
	return BaseEvent{
		Timestamp: time.Now().Unix(),
		EventType: eventType,
		DroneID:   droneID,
		MissionID: missionID,
		OrderID:   orderID,
	}
}

func (e *Emitter) DroneAssigned(mission *models.Mission, drone *models.Drone) {
	e.emit(topicDroneAssignments, struct {
		BaseEvent
		SerialNumber     string  `json:"serialNumber"`
		DistanceKm       float64 `json:"distanceKm"`
		EstimatedMinutes int     `json:"estimatedMinutes"`
	}{
		BaseEvent:        e.baseEvent(models.EventDroneAssigned, drone.ID, mission.ID, mission.OrderID),
		SerialNumber:     drone.SerialNumber,
		DistanceKm:       mission.DistanceKm,
		EstimatedMinutes: mission.EstimatedMinutes,
	})
}

func (e *Emitter) DeliveryCompleted(mission *models.Mission, drone *models.Drone) {
	e.emit(topicDeliveryCompleted, struct {
		BaseEvent
		CompletedAt int64 `json:"completedAt"`
		Battery     int   `json:"battery"`
	}{
		BaseEvent:   e.baseEvent(models.EventDeliveryCompleted, drone.ID, mission.ID, mission.OrderID),
		CompletedAt: mission.CompletedAt.Unix(),
		Battery:     drone.Battery,
	})
}

func (e *Emitter) MissionCancelled(mission *models.Mission, drone *models.Drone) {
	e.emit(topicMissionCancelled, struct {
		BaseEvent
		Battery int    `json:"battery"`
		State   string `json:"state"`
	}{
		BaseEvent: e.baseEvent(models.EventMissionCancelled, drone.ID, mission.ID, mission.OrderID),
		Battery:   drone.Battery,
		State:     drone.State,
	})
}

func (e *Emitter) LowBattery(drone *models.Drone) {
	e.emit(topicLowBattery, struct {
		BaseEvent
		SerialNumber string `json:"serialNumber"`
		Battery      int    `json:"battery"`
	}{
		BaseEvent:    e.baseEvent(models.EventLowBattery, drone.ID, 0, 0),
		SerialNumber: drone.SerialNumber,
		Battery:      drone.Battery,
	})
}

func (e *Emitter) Telemetry(drone *models.Drone, mission *models.Mission) {
	e.emit(topicDroneTelemetry, struct {
		BaseEvent
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		Battery int     `json:"battery"`
		State   string  `json:"state"`
	}{
		BaseEvent: e.baseEvent(models.EventDroneTelemetry, drone.ID, mission.ID, mission.OrderID),
		Lat:       drone.CurrentLocation.Lat,
		Lon:       drone.CurrentLocation.Lon,
		Battery:   drone.Battery,
		State:     drone.State,
	})
}
