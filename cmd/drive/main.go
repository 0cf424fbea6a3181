// Command drive is an interactive terminal driving session: the keyboard
// drives one vehicle, the screen shows it from above, and every pose can be
// recorded to the configured backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cxd309/drive-engine/internal/config"
	"github.com/cxd309/drive-engine/internal/engine"
	"github.com/cxd309/drive-engine/internal/logging"
	"github.com/cxd309/drive-engine/internal/otel"
	"github.com/cxd309/drive-engine/internal/recorder"
	"github.com/cxd309/drive-engine/internal/tui"
	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

const appName = "drive"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet(appName, pflag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("logs-dir", "./drivelogs", "directory for log files, empty to disable")
	fs.String("course", "", "course JSON to follow with the autopilot")
	fs.String("recorder", "none", "pose recorder (none, memory, sqlite, postgres, influx)")
	fs.Float64("scale", vehicle.DefaultScale, "vehicle scale")
	fs.Bool("otel", false, "write metrics next to the log file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgErr := config.Load(*configDir)
	var notFound viper.ConfigFileNotFoundError
	if cfgErr != nil && !errors.As(cfgErr, &notFound) {
		return cfgErr
	}
	if err := config.BindFlags(fs); err != nil {
		return err
	}

	// The terminal belongs to the screen while the session runs.
	logCfg := config.GetLogConfig()
	logCfg.Console = false
	logger, err := logging.Setup(logCfg, appName, nil)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("config file not found, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeMetrics, err := setupMetrics(logger.FilePath)
	if err != nil {
		return err
	}
	defer closeMetrics()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown failed")
		}
	}()

	veh, err := config.GetVehicleConfig()
	if err != nil {
		return err
	}
	vcfg, err := veh.Config()
	if err != nil {
		return err
	}

	start := time.Now()
	var sinks []engine.PoseSink
	rec, err := recorder.New(config.GetRecorderConfig(), log)
	switch {
	case errors.Is(err, recorder.ErrDisabled):
		log.Info().Msg("pose recording disabled")
	case err != nil:
		return err
	default:
		session := recorder.Session{
			ID:        "drive-" + start.UTC().Format("20060102_150405"),
			Vehicle:   veh,
			StartedAt: start,
		}
		if err := rec.Init(ctx, session); err != nil {
			return fmt.Errorf("starting recorder: %w", err)
		}
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := rec.Close(cctx); err != nil {
				log.Error().Err(err).Msg("closing recorder")
			}
		}()
		sinks = append(sinks, rec)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initialising terminal: %w", err)
	}
	defer screen.Fini()

	src := vehicle.NewInputSource()
	app := tui.New(screen, src, config.GetTUIConfig(), log)
	sinks = append(sinks, app)

	// The viewer stands at the world origin looking down -Z.
	pc := config.GetPlacementConfig()
	cam := vehicle.CameraOrientation{Forward: vmath.Forward}
	it := vehicle.NewIntegrator(vcfg)
	it.Place(vehicle.InFrontOf(cam, pc.AnchorY, pc.Distance))

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithSinks(sinks...),
		engine.WithMeter(provider.Meter(appName)),
		engine.WithCamera(engine.StaticCamera(cam)),
		engine.WithPlacementDistance(pc.Distance),
	}
	if path := config.GetString("course"); path != "" {
		pilot, waypoints, err := loadCourse(path)
		if err != nil {
			return err
		}
		app.View().SetWaypoints(waypoints)
		opts = append(opts, engine.WithPilot(pilot))
		log.Info().Str("course", path).Int("waypoints", len(waypoints)).Msg("autopilot engaged")
	}

	driver, err := engine.NewDriver(it, src, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	driveErr := make(chan error, 1)
	go func() {
		driveErr <- driver.Run(ctx, engine.NewTickerScheduler(vcfg.TickInterval))
	}()

	uiErr := app.Run(ctx)
	cancel()
	if err := <-driveErr; err != nil {
		return fmt.Errorf("driver: %w", err)
	}

	log.Info().
		Uint64("ticks", driver.Ticks()).
		Int("resets", driver.Resets()).
		Dur("duration", time.Since(start)).
		Msg("session ended")
	return uiErr
}

// setupMetrics starts the metrics provider. Exports go to a file beside the
// log file, or nowhere when there is none.
func setupMetrics(logPath string) (*otel.Provider, func(), error) {
	cfg := config.GetOTelConfig()
	closeFn := func() {}
	if cfg.Enabled {
		cfg.MetricWriter = io.Discard
		if logPath != "" {
			f, err := os.Create(strings.TrimSuffix(logPath, ".log") + ".metrics.json")
			if err != nil {
				return nil, nil, fmt.Errorf("creating metrics file: %w", err)
			}
			cfg.MetricWriter = f
			closeFn = func() { _ = f.Close() }
		}
	}
	p, err := otel.New(cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

// loadCourse reads a course file and builds the autopilot for it. A course
// without autopilot settings uses the configured ones.
func loadCourse(path string) (engine.Pilot, []vmath.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading course: %w", err)
	}
	var cs engine.CourseSpec
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, nil, fmt.Errorf("parsing course %s: %w", path, err)
	}
	if cs.Autopilot == nil {
		ap := config.GetAutopilotConfig()
		cs.Autopilot = &ap
	}
	pilot, err := engine.NewPilot(cs)
	if err != nil {
		return nil, nil, fmt.Errorf("course %s: %w", path, err)
	}
	waypoints := make([]vmath.Vec3, 0, len(cs.Waypoints))
	for _, wp := range cs.Waypoints {
		waypoints = append(waypoints, wp.Loc.Vec3())
	}
	return pilot, waypoints, nil
}
