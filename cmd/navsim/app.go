package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/tiltpilot/navsim/internal/api"
	"github.com/tiltpilot/navsim/internal/board"
	"github.com/tiltpilot/navsim/internal/config"
	"github.com/tiltpilot/navsim/internal/control"
	"github.com/tiltpilot/navsim/internal/dispatcher"
	"github.com/tiltpilot/navsim/internal/evaluator"
	"github.com/tiltpilot/navsim/internal/indicator"
	"github.com/tiltpilot/navsim/internal/kinematics"
	"github.com/tiltpilot/navsim/internal/logging"
	"github.com/tiltpilot/navsim/internal/monitor"
	intOtel "github.com/tiltpilot/navsim/internal/otel"
	"github.com/tiltpilot/navsim/internal/sensor"
	"github.com/tiltpilot/navsim/internal/session"
	"github.com/tiltpilot/navsim/internal/telemetry"
	"github.com/tiltpilot/navsim/internal/timeutil"
	"github.com/tiltpilot/navsim/internal/waypoint"
	"github.com/tiltpilot/navsim/internal/worker"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Sensor types accepted by sensor.type.
const (
	sensorSynthetic = "synthetic"
	sensorSerial    = "serial"
)

var errUnknownSensor = errors.New("unknown sensor type")

const (
	// shutdownTimeout bounds the final OTel flush.
	shutdownTimeout = 5 * time.Second
	uploadTimeout   = time.Minute
)

// app holds the process-wide logging state shared by every run.
type app struct {
	start   time.Time
	slog    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	session *session.Context
}

// newApp opens the session log, starts OTel when configured and builds both
// loggers. Failing to open the log file or the OTel exporter is not fatal.
func newApp(ctx context.Context, stdout io.Writer) (*app, error) {
	a := &app{
		start:   time.Now(),
		slog:    logging.NewSlogManager(),
		session: session.NewContext(),
	}
	a.slog.SetContextProvider(a.session.LogAttrs)
	level := viper.GetString("logLevel")

	var warnings []any
	f, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, a.start)
	if err != nil {
		warnings = append(warnings, "log_file_error", err)
	} else {
		a.logFile = f
	}

	// A nil *os.File must not become a non-nil io.Writer.
	var fileWriter io.Writer
	out := stdout
	if a.logFile != nil {
		fileWriter = a.logFile
		out = io.MultiWriter(stdout, a.logFile)
	}

	a.otel, err = intOtel.New(ctx, intOtel.ConfigFrom(config.GetOTelConfig(), fileWriter))
	if err != nil {
		warnings = append(warnings, "otel_error", err)
		a.otel = nil
	}
	var provider *sdklog.LoggerProvider
	if a.otel != nil {
		provider = a.otel.LoggerProvider()
	}

	a.slog.Setup(out, level, provider)
	a.logger = a.slog.Logger()
	if len(warnings) > 0 {
		a.logger.Warn("Starting with reduced logging", warnings...)
	}

	a.zlog = logging.NewZerolog(stdout, fileWriter, level, func(e *zerolog.Event) {
		if run := a.session.GetRun(); run != nil && run.RunUUID != "" {
			e.Str("run", run.RunUUID)
		}
	})

	a.logger.Info("Starting up", "version", Version, "build_date", BuildDate)
	if a.logFile != nil {
		a.logger.Info("Logging to file", "path", a.logFile.Name())
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.slog.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel", "error", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// tiltSource is the calibrated sampler plus the indicator output that
// belongs to the same hardware.
type tiltSource struct {
	sampler *sensor.Calibrated
	output  indicator.Output
	close   func() error
}

// openSensor opens and calibrates the configured tilt source. Indicator
// writes always go to the log; a serial board also lights its LEDs.
func openSensor(ctx context.Context, cfg config.SensorConfig, seed uint64, logger *slog.Logger) (*tiltSource, error) {
	logOut := indicator.NewLogOutput(logger.With("component", "indicator"))

	var (
		raw  sensor.RawReader
		src  = &tiltSource{output: logOut, close: func() error { return nil }}
		kind = cfg.Type
	)
	switch kind {
	case sensorSynthetic, "":
		raw = sensor.NewSynthetic(seed)
	case sensorSerial:
		b, err := board.Open(cfg.Port, board.PortOptions{BaudRate: cfg.Baud, ResponseTimeout: cfg.Timeout}, logger.With("component", "board"))
		if err != nil {
			return nil, fmt.Errorf("open board: %w", err)
		}
		raw = b
		src.output = indicator.Multi{b, logOut}
		src.close = b.Close
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownSensor, kind)
	}

	calibrated, err := sensor.Calibrate(ctx, raw, cfg.Divisor)
	if err != nil {
		_ = src.close()
		return nil, fmt.Errorf("calibrate %s sensor: %w", kind, err)
	}
	src.sampler = calibrated
	logger.Info("Sensor calibrated",
		"type", kind,
		"gravity", calibrated.GravityReference(),
		"bias", calibrated.Bias().String(),
	)
	return src, nil
}

// runSimulation assembles one run from config and flies it until it
// completes, fails or ctx is cancelled.
func runSimulation(ctx context.Context, a *app) (core.RunSummary, error) {
	simCfg := config.GetSimConfig()
	indCfg := config.GetIndicatorConfig()
	sensorCfg := config.GetSensorConfig()
	storageCfg := config.GetStorageConfig()
	monitorCfg := config.GetMonitorConfig()

	seed := simCfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	a.logger.Info("Configuration loaded",
		"sensor", sensorCfg.Type,
		"storage", storageCfg.Type,
		"waypoints", simCfg.TotalWaypoints,
		"seed", seed,
	)

	src, err := openSensor(ctx, sensorCfg, seed, a.logger)
	if err != nil {
		return core.RunSummary{}, err
	}
	defer func() {
		if err := src.close(); err != nil {
			a.logger.Warn("Failed to close sensor", "error", err)
		}
	}()

	backend, err := createStorageBackend(storageCfg, a.zlog, a.slog.Component("storage"))
	if err != nil {
		return core.RunSummary{}, err
	}
	if err := backend.Init(); err != nil {
		return core.RunSummary{}, fmt.Errorf("init %s storage: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.logger.Error("Failed to close storage", "error", err)
		}
	}()

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return core.RunSummary{}, fmt.Errorf("create dispatcher: %w", err)
	}
	defer d.Close()

	manager := worker.NewManager(worker.Dependencies{Logger: a.slog.Component("worker")}, backend)
	manager.RegisterHandlers(d)
	pub := telemetry.NewPublisher(d, a.session, a.slog.Component("telemetry"))

	if monitorCfg.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Logger:     a.slog.Component("monitor"),
			Session:    a.session,
			Queues:     manager,
			StatusFile: monitorCfg.StatusFile,
			Interval:   monitorCfg.Interval,
		})
		if err := mon.Start(); err != nil {
			a.logger.Warn("Status monitor not started", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	clock := timeutil.RealClock{}
	indicators := indicator.NewState(src.output, indCfg.Countdown)
	scheduler := indicator.NewScheduler(indicators, clock, indicator.Periods{
		FastBase:      indCfg.FastBase,
		FastFloor:     indCfg.FastFloor,
		SlowCadence:   indCfg.SlowCadence,
		CountdownUnit: indCfg.CountdownUnit,
		Countdown:     indCfg.Countdown,
	}, a.slog.Component("indicator"))

	registry := waypoint.NewRegistry(waypoint.NewRandomSource(seed), waypoint.Options{
		HitRadius:   simCfg.HitRadius,
		NearRadius:  simCfg.NearRadius,
		SpawnJitter: simCfg.SpawnJitter,
	})
	integrator := kinematics.New(src.sampler.GravityReference())
	integrator.PitchGain = simCfg.PitchGain

	start := core.VehicleState{Position: simCfg.Start, Velocity: simCfg.BaseVelocity}
	run := &core.Run{
		Name:           AppName,
		StartTime:      a.start,
		TotalWaypoints: simCfg.TotalWaypoints,
		SensorType:     sensorCfg.Type,
		StartState:     start,
		Config: map[string]any{
			"sim":       viper.GetStringMap("sim"),
			"indicator": viper.GetStringMap("indicator"),
			"seed":      seed,
		},
	}
	if err := pub.StartRun(run); err != nil {
		return core.RunSummary{}, err
	}

	loop, err := control.New(
		src.sampler,
		integrator,
		registry,
		indicators,
		src.output,
		start,
		control.Config{
			TotalWaypoints: simCfg.TotalWaypoints,
			Step:           simCfg.IntegrationStep,
			Bounds:         evaluator.Bounds{Min: 0, Max: simCfg.BoardSpan},
		},
		control.WithTelemetry(pub),
		control.WithPacer(control.ClockPacer{Clock: clock, Min: simCfg.TickDelay}),
		control.WithLogger(a.slog.Component("control")),
		control.WithClock(clock),
		control.WithRunUUID(run.RunUUID),
	)
	if err != nil {
		return core.RunSummary{}, fmt.Errorf("create control loop: %w", err)
	}

	triggerCtx, stopTriggers := context.WithCancel(ctx)
	scheduler.Start(triggerCtx)
	a.logger.Info("Run started", "start_x", start.Position.X, "start_y", start.Position.Y)

	summary, runErr := loop.Run(ctx)
	stopTriggers()
	scheduler.Wait()
	indicators.DisableFast()

	if err := pub.EndRun(summary); err != nil {
		a.logger.Error("Failed to record run end", "error", err)
	}
	if dropped := pub.Dropped(); dropped > 0 {
		a.logger.Warn("Status lines dropped", "count", dropped)
	}
	if path := manager.ExportedFilePath(); path != "" {
		a.logger.Info("Run exported", "path", path)
		if apiCfg := config.GetAPIConfig(); apiCfg.Upload {
			uploadExport(a.logger, apiCfg, path, api.MetadataFor(run, summary))
		}
	}
	return summary, runErr
}

// uploadExport sends the export to the telemetry server. Failures are logged
// and leave the local file in place.
func uploadExport(logger *slog.Logger, cfg config.APIConfig, path string, meta api.UploadMetadata) {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Telemetry server unreachable, keeping export local", "error", err, "path", path)
		return
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		logger.Error("Failed to upload export", "error", err, "path", path)
		return
	}
	logger.Info("Export uploaded", "path", path, "server", cfg.ServerURL)
}
