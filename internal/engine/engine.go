package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chrisdamba/dronesim/internal/engine/producers"
	"github.com/chrisdamba/dronesim/internal/factories"
	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
	"github.com/schollz/progressbar/v3"
)

// Engine wires the dispatch selector and the two periodic schedulers over a
// shared drone registry and mission store. Dispatch is on-demand; movement
// and battery run autonomously on independent tickers once Run is called.
type Engine struct {
	cfg      *models.Config
	drones   repositories.DroneRepository
	missions repositories.MissionRepository
	output   OutputDestination

	dispatcher *Dispatcher
	movement   *MovementSimulator
	battery    *BatteryManager

	rng      *rand.Rand
	orderSeq int64
}

func NewEngine(cfg *models.Config, drones repositories.DroneRepository, missions repositories.MissionRepository) (*Engine, error) {
	output, err := determineOutputDestination(cfg)
	if err != nil {
		return nil, err
	}

	emitter := NewEmitter(output)
	seed := int64(cfg.Seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		cfg:        cfg,
		drones:     drones,
		missions:   missions,
		output:     output,
		dispatcher: NewDispatcher(drones, missions, cfg, emitter),
		movement:   NewMovementSimulator(drones, missions, cfg, emitter),
		battery:    NewBatteryManager(drones, cfg, emitter),
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Dispatch is the on-demand entry point for order-processing collaborators.
func (e *Engine) Dispatch(ctx context.Context, pickup, delivery models.Location, orderID int64) (*Assignment, error) {
	return e.dispatcher.Dispatch(ctx, pickup, delivery, orderID)
}

func determineOutputDestination(cfg *models.Config) (OutputDestination, error) {
	if cfg.KafkaEnabled {
		return producers.NewSaramaProducer(cfg)
	}
	switch cfg.OutputFormat {
	case "parquet":
		return NewParquetOutput(cfg)
	case "json":
		return NewJSONOutput(cfg.OutputPath, cfg.OutputFolder), nil
	default:
		return &ConsoleOutput{}, nil
	}
}

// Run seeds the fleet if the registry is empty, then drives the movement and
// battery schedulers until the context is cancelled. The two schedules are
// deliberately independent: a slow mission sweep must not delay charging.
func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		if err := e.output.Close(); err != nil {
			log.Printf("Error closing output destination: %v", err)
		}
	}()

	if err := e.seedFleet(ctx); err != nil {
		return err
	}

	log.Printf("Engine starting: movement tick %s, battery tick %s", e.cfg.MovementTick(), e.cfg.BatteryTick())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.movementLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.batteryLoop(ctx)
	}()
	wg.Wait()

	log.Printf("Engine stopped")
	return nil
}

func (e *Engine) movementLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MovementTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.generateOrders(ctx)
			e.sweepMissions(ctx)
		}
	}
}

func (e *Engine) batteryLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.BatteryTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.battery.Tick(ctx); err != nil {
				log.Printf("Battery sweep failed: %v", err)
			}
		}
	}
}

// sweepMissions runs one movement tick per active mission. Each mission is
// an isolated unit of work: a failing tick is logged and the sweep moves on.
func (e *Engine) sweepMissions(ctx context.Context) {
	missions, err := e.missions.ListActive(ctx)
	if err != nil {
		log.Printf("Failed to list active missions: %v", err)
		return
	}
	for _, mission := range missions {
		if err := e.movement.Tick(ctx, mission.ID); err != nil {
			log.Printf("Movement tick failed for mission %d: %v", mission.ID, err)
		}
	}
}

// generateOrders synthesizes delivery orders in continuous mode so a
// standalone run exercises the full dispatch-and-flight lifecycle.
func (e *Engine) generateOrders(ctx context.Context) {
	if !e.cfg.Continuous || e.cfg.OrderFrequency <= 0 {
		return
	}
	expected := e.cfg.OrderFrequency * float64(e.cfg.MovementTickSeconds) / 60.0
	count := int(expected)
	if e.rng.Float64() < expected-float64(count) {
		count++
	}
	for i := 0; i < count; i++ {
		e.placeOrder(ctx)
	}
}

func (e *Engine) placeOrder(ctx context.Context) {
	orderID := atomic.AddInt64(&e.orderSeq, 1)
	pickup := e.randomCityPoint()
	delivery := e.randomCityPoint()

	assignment, err := e.Dispatch(ctx, pickup, delivery, orderID)
	if err != nil {
		log.Printf("Dispatch failed for order %d: %v", orderID, err)
		return
	}
	if assignment == nil {
		log.Printf("No drone available for order %d", orderID)
	}
}

// randomCityPoint samples a location uniformly inside the urban radius.
func (e *Engine) randomCityPoint() models.Location {
	latRange := e.cfg.UrbanRadius / 111.0
	lonRange := latRange / math.Cos(e.cfg.CityLat*math.Pi/180.0)

	r := math.Sqrt(e.rng.Float64())
	theta := e.rng.Float64() * 2 * math.Pi

	return models.Location{
		Lat: e.cfg.CityLat + r*latRange*math.Sin(theta),
		Lon: e.cfg.CityLon + r*lonRange*math.Cos(theta),
	}
}

func (e *Engine) seedFleet(ctx context.Context) error {
	if e.cfg.Reseed {
		if err := e.drones.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clearing fleet for reseed: %w", err)
		}
	}

	count, err := e.drones.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 || e.cfg.InitialDrones <= 0 {
		return nil
	}

	factory := &factories.DroneFactory{}
	bar := progressbar.Default(int64(e.cfg.InitialDrones), "seeding drones")
	fleet := make([]*models.Drone, 0, e.cfg.InitialDrones)
	for i := 0; i < e.cfg.InitialDrones; i++ {
		fleet = append(fleet, factory.CreateDrone(e.cfg))
		_ = bar.Add(1)
	}
	if err := e.drones.BulkCreate(ctx, fleet); err != nil {
		return err
	}
	log.Printf("Seeded %d drones around %s", e.cfg.InitialDrones, e.cfg.CityName)
	return nil
}
