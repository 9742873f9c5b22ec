package models

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	BucketName string `mapstructure:"bucket_name"`
	Region     string `mapstructure:"region"`
}

type Config struct {
	Seed          int    `mapstructure:"seed"`
	Continuous    bool   `mapstructure:"continuous"`
	InitialDrones int    `mapstructure:"initial_drones"`
	Reseed        bool   `mapstructure:"reseed"` // drop the persisted fleet and seed afresh
	CityName      string `mapstructure:"city_name"`

	CityLat     float64 `mapstructure:"city_latitude"`
	CityLon     float64 `mapstructure:"city_longitude"`
	UrbanRadius float64 `mapstructure:"urban_radius"` // km; dispatch orders and drone bases are sampled inside it

	// Flight and battery policy. These are policy parameters, not physical
	// constants; operators tune them per fleet.
	DroneSpeedKmh         float64 `mapstructure:"drone_speed_kmh"`
	ConsumptionPerKm      float64 `mapstructure:"consumption_per_km"`      // battery percent drained per km flown
	BatteryReservePercent float64 `mapstructure:"battery_reserve_percent"` // fixed margin on top of the round-trip cost
	ArrivalThresholdKm    float64 `mapstructure:"arrival_threshold_km"`
	MovementTickSeconds   int     `mapstructure:"movement_tick_seconds"`
	BatteryTickSeconds    int     `mapstructure:"battery_tick_seconds"`
	ChargeRatePercent     int     `mapstructure:"charge_rate_percent"` // per battery tick
	IdleDrainPercent      float64 `mapstructure:"idle_drain_percent"`  // per battery tick, fractional
	LowBatteryThreshold   int     `mapstructure:"low_battery_threshold"`
	ChargeBelowPercent    int     `mapstructure:"charge_below_percent"` // returning drones below this go on charge

	MinCapacityKg float64 `mapstructure:"min_capacity_kg"`
	MaxCapacityKg float64 `mapstructure:"max_capacity_kg"`

	// OrderFrequency is the average number of synthetic orders per minute in
	// continuous mode.
	OrderFrequency float64 `mapstructure:"order_frequency"`
	EmitTelemetry  bool    `mapstructure:"emit_telemetry"`

	KafkaEnabled     bool   `mapstructure:"kafka_enabled"`
	KafkaBrokerList  string `mapstructure:"kafka_broker_list"`
	SessionTimeoutMs int    `mapstructure:"session_timeout_ms"`

	OutputFormat      string `mapstructure:"output_format"` // "console", "json" or "parquet"; kafka_enabled wins over all
	OutputPath        string `mapstructure:"output_path"`
	OutputFolder      string `mapstructure:"output_folder"`
	OutputDestination string `mapstructure:"output_destination"` // "local" or a cloud provider backed by cloud_storage

	PostgresEnabled bool               `mapstructure:"postgres_enabled"`
	Database        DatabaseConfig     `mapstructure:"database"`
	CloudStorage    CloudStorageConfig `mapstructure:"cloud_storage"`
}

// MovementTick returns the movement scheduler period.
func (cfg *Config) MovementTick() time.Duration {
	return time.Duration(cfg.MovementTickSeconds) * time.Second
}

// BatteryTick returns the battery scheduler period.
func (cfg *Config) BatteryTick() time.Duration {
	return time.Duration(cfg.BatteryTickSeconds) * time.Second
}

// LoadConfig initializes and reads the configuration using Viper
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Default config location
		viper.AddConfigPath("examples")
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	viper.AutomaticEnv() // Read in environment variables that match

	setEngineDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		)
	})
	if err := viper.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	return &config, nil
}

func setEngineDefaults() {
	viper.SetDefault("initial_drones", 20)
	viper.SetDefault("city_latitude", 10.7769)
	viper.SetDefault("city_longitude", 106.7009)
	viper.SetDefault("urban_radius", 10.0)
	viper.SetDefault("drone_speed_kmh", 40.0)
	viper.SetDefault("consumption_per_km", 2.0)
	viper.SetDefault("battery_reserve_percent", 10.0)
	viper.SetDefault("arrival_threshold_km", 0.05)
	viper.SetDefault("movement_tick_seconds", 2)
	viper.SetDefault("battery_tick_seconds", 5)
	viper.SetDefault("charge_rate_percent", 5)
	viper.SetDefault("idle_drain_percent", 0.004)
	viper.SetDefault("low_battery_threshold", 20)
	viper.SetDefault("charge_below_percent", 50)
	viper.SetDefault("min_capacity_kg", 2.0)
	viper.SetDefault("max_capacity_kg", 12.0)
	viper.SetDefault("order_frequency", 2.0)
	viper.SetDefault("output_format", "console")
	viper.SetDefault("output_destination", "local")
	viper.SetDefault("output_folder", "drone_events")
}
