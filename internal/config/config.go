// Package config loads navsim settings from navsim.cfg.json through viper
// and exposes typed views of each section.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/tiltpilot/navsim/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "navsim.cfg.json"

// SimConfig holds the simulation constants.
type SimConfig struct {
	BoardSpan       float64
	HitRadius       float64
	NearRadius      float64
	SpawnJitter     float64
	BaseVelocity    float64
	PitchGain       float64
	Start           core.Vector3
	TotalWaypoints  int
	IntegrationStep float64
	TickDelay       time.Duration
	Seed            uint64
}

// IndicatorConfig holds the trigger timing.
type IndicatorConfig struct {
	FastBase      time.Duration
	FastFloor     time.Duration
	SlowCadence   time.Duration
	CountdownUnit time.Duration
	Countdown     time.Duration
}

// SensorConfig selects and configures the tilt source.
type SensorConfig struct {
	Type    string
	Port    string
	Baud    int
	Divisor float64
	Timeout time.Duration
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpDir      string
}

// StorageConfig selects the telemetry backend.
type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds InfluxDB connection settings.
type InfluxConfig struct {
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// APIConfig holds the telemetry server used by the websocket backend.
type APIConfig struct {
	ServerURL string
	APIKey    string
	// Upload sends the run export to the server after each run.
	Upload bool
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// MonitorConfig controls the status file writer.
type MonitorConfig struct {
	Enabled    bool
	Interval   time.Duration
	StatusFile string
}

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./navsimlogs")

	viper.SetDefault("sim.boardSpan", 2000.0)
	viper.SetDefault("sim.hitRadius", 200.0)
	viper.SetDefault("sim.nearRadius", 400.0)
	viper.SetDefault("sim.spawnJitter", 1600.0)
	viper.SetDefault("sim.baseVelocity", 300.0)
	viper.SetDefault("sim.pitchGain", 0.05)
	viper.SetDefault("sim.startX", 50.0)
	viper.SetDefault("sim.startY", 50.0)
	viper.SetDefault("sim.startZ", 2000.0)
	viper.SetDefault("sim.totalWaypoints", 1)
	viper.SetDefault("sim.integrationStep", 0.01)
	viper.SetDefault("sim.tickDelay", "10ms")
	viper.SetDefault("sim.seed", 0)

	viper.SetDefault("indicator.fastBase", "500ms")
	viper.SetDefault("indicator.fastFloor", "100ms")
	viper.SetDefault("indicator.slowCadence", "1s")
	viper.SetDefault("indicator.countdownUnit", "1s")
	viper.SetDefault("indicator.countdown", "1m")

	viper.SetDefault("sensor.type", "synthetic")
	viper.SetDefault("sensor.port", "/dev/ttyACM0")
	viper.SetDefault("sensor.baud", 115200)
	viper.SetDefault("sensor.divisor", 1000.0)
	viper.SetDefault("sensor.timeout", "1s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpDir", "./recordings")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "navsim")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "navsim")
	viper.SetDefault("influx.bucket", "navsim")
	viper.SetDefault("influx.backupDir", "./recordings")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./navsim_status.json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "navsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the returned error wraps viper.ConfigFileNotFoundError.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return ValidateSim(GetSimConfig())
}

// ErrInvalidRadius is returned when the waypoint radii cannot be used.
var ErrInvalidRadius = errors.New("invalid waypoint radius")

// ValidateSim checks that hits are possible and that the proximity zone
// encloses the hit zone.
func ValidateSim(cfg SimConfig) error {
	if cfg.HitRadius <= 0 {
		return fmt.Errorf("%w: sim.hitRadius %g must be positive", ErrInvalidRadius, cfg.HitRadius)
	}
	if cfg.NearRadius <= cfg.HitRadius {
		return fmt.Errorf("%w: sim.nearRadius %g must be larger than sim.hitRadius %g",
			ErrInvalidRadius, cfg.NearRadius, cfg.HitRadius)
	}
	return nil
}

// GetSimConfig returns the simulation section.
func GetSimConfig() SimConfig {
	return SimConfig{
		BoardSpan:    viper.GetFloat64("sim.boardSpan"),
		HitRadius:    viper.GetFloat64("sim.hitRadius"),
		NearRadius:   viper.GetFloat64("sim.nearRadius"),
		SpawnJitter:  viper.GetFloat64("sim.spawnJitter"),
		BaseVelocity: viper.GetFloat64("sim.baseVelocity"),
		PitchGain:    viper.GetFloat64("sim.pitchGain"),
		Start: core.Vector3{
			X: viper.GetFloat64("sim.startX"),
			Y: viper.GetFloat64("sim.startY"),
			Z: viper.GetFloat64("sim.startZ"),
		},
		TotalWaypoints:  viper.GetInt("sim.totalWaypoints"),
		IntegrationStep: viper.GetFloat64("sim.integrationStep"),
		TickDelay:       viper.GetDuration("sim.tickDelay"),
		Seed:            viper.GetUint64("sim.seed"),
	}
}

// GetIndicatorConfig returns the trigger timing section.
func GetIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		FastBase:      viper.GetDuration("indicator.fastBase"),
		FastFloor:     viper.GetDuration("indicator.fastFloor"),
		SlowCadence:   viper.GetDuration("indicator.slowCadence"),
		CountdownUnit: viper.GetDuration("indicator.countdownUnit"),
		Countdown:     viper.GetDuration("indicator.countdown"),
	}
}

// GetSensorConfig returns the sensor section.
func GetSensorConfig() SensorConfig {
	return SensorConfig{
		Type:    viper.GetString("sensor.type"),
		Port:    viper.GetString("sensor.port"),
		Baud:    viper.GetInt("sensor.baud"),
		Divisor: viper.GetFloat64("sensor.divisor"),
		Timeout: viper.GetDuration("sensor.timeout"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpDir:      viper.GetString("storage.sqlite.dumpDir"),
		},
	}
}

// GetDBConfig returns the Postgres section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetAPIConfig returns the telemetry server section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
	}
}

// GetOTelConfig returns the OpenTelemetry section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the status monitor section.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
