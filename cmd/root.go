package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chrisdamba/dronesim/internal/engine"
	"github.com/chrisdamba/dronesim/internal/models"
	"github.com/chrisdamba/dronesim/internal/repositories"
	"github.com/chrisdamba/dronesim/internal/repositories/memory"
	"github.com/chrisdamba/dronesim/internal/repositories/postgres"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dronesim",
	Short: "Dispatches and simulates autonomous delivery drones",
	Long:  `dronesim runs a drone dispatch-and-simulation engine: it assigns idle drones to delivery orders, flies them along their routes on a fixed tick, manages battery charge and drain, and emits lifecycle events to Kafka, files or a parquet archive.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := models.LoadConfig(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var droneRepo repositories.DroneRepository
		var missionRepo repositories.MissionRepository
		if cfg.PostgresEnabled {
			pool, err := postgres.NewPool(ctx, cfg.Database)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
				os.Exit(1)
			}
			defer pool.Close()
			droneRepo = postgres.NewDroneRepository(pool)
			missionRepo = postgres.NewMissionRepository(pool)
		} else {
			droneRepo = memory.NewDroneRepository()
			missionRepo = memory.NewMissionRepository()
		}

		eng, err := engine.NewEngine(cfg, droneRepo, missionRepo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
			os.Exit(1)
		}
		if err := eng.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Engine error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dronesim.yaml)")

	rootCmd.Flags().Int("seed", 42, "Random seed for simulation")
	rootCmd.Flags().Int("initial-drones", 20, "Initial fleet size when the registry is empty")
	rootCmd.Flags().Bool("reseed", false, "Drop the persisted fleet and seed a fresh one on startup")
	rootCmd.Flags().Float64("drone-speed-kmh", 40.0, "Cruise speed in km/h")
	rootCmd.Flags().Float64("consumption-per-km", 2.0, "Battery percent drained per km flown")
	rootCmd.Flags().Float64("battery-reserve-percent", 10.0, "Fixed battery reserve required on top of the round trip")
	rootCmd.Flags().Int("movement-tick-seconds", 2, "Movement scheduler period in seconds")
	rootCmd.Flags().Int("battery-tick-seconds", 5, "Battery scheduler period in seconds")
	rootCmd.Flags().Float64("order-frequency", 2.0, "Average synthetic orders per minute in continuous mode")
	rootCmd.Flags().Bool("continuous", false, "Generate synthetic orders continuously")
	rootCmd.Flags().Bool("emit-telemetry", false, "Emit a telemetry event per movement tick")
	rootCmd.Flags().Bool("kafka-enabled", false, "Enable Kafka output")
	rootCmd.Flags().String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	rootCmd.Flags().String("output-format", "console", "Output format when Kafka is disabled (console, json, parquet)")
	rootCmd.Flags().String("output-path", "", "Base directory for file outputs")
	rootCmd.Flags().Bool("postgres-enabled", false, "Persist the fleet in postgres instead of in memory")

	viper.BindPFlags(rootCmd.Flags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dronesim")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
