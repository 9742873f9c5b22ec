package factories

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
)

var fake = faker.New()

type DroneFactory struct{}

// CreateDrone builds a fully charged, idle drone stationed at a base sampled
// inside the configured urban radius. Base position is fixed for the drone's
// lifetime; the drone starts parked there.
func (df *DroneFactory) CreateDrone(config *models.Config) *models.Drone {
	// Approximate conversion from km to degrees for the city bounds.
	latRange := config.UrbanRadius / 111.0
	lonRange := latRange / math.Cos(config.CityLat*math.Pi/180.0)

	lat := config.CityLat + (fake.Float64(6, 0, 1000)/500.0-1.0)*latRange
	lon := config.CityLon + (fake.Float64(6, 0, 1000)/500.0-1.0)*lonRange

	base := models.Location{Lat: lat, Lon: lon}
	capacity := config.MinCapacityKg +
		fake.Float64(2, 0, 100)/100.0*(config.MaxCapacityKg-config.MinCapacityKg)

	return &models.Drone{
		SerialNumber:    fmt.Sprintf("DRN-%s", strings.ToUpper(cuid.Slug())),
		Battery:         100,
		State:           models.DroneStateIdle,
		CurrentLocation: base,
		BaseLocation:    &base,
		CapacityKg:      capacity,
		LastUpdateTime:  time.Now(),
	}
}
