package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cxd309/drive-engine/internal/autopilot"
	"github.com/cxd309/drive-engine/internal/kinematics"
	"github.com/cxd309/drive-engine/internal/logging"
	"github.com/cxd309/drive-engine/internal/otel"
	"github.com/cxd309/drive-engine/internal/recorder"
	"github.com/cxd309/drive-engine/internal/tui"
	"github.com/cxd309/drive-engine/internal/vehicle"
)

// FileName is the config file looked up in the config directory.
const FileName = "drive.cfg.json"

// Placement holds where a session's vehicle is put down.
type Placement struct {
	AnchorY  float64 `mapstructure:"anchorY"`
	Distance float64 `mapstructure:"distance"` // metres in front of the camera
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./drivelogs")
	viper.SetDefault("logConsole", true)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	ref := vehicle.DefaultVehicle()
	viper.SetDefault("vehicle.name", ref.Name)
	viper.SetDefault("vehicle.scale", ref.Scale)
	viper.SetDefault("vehicle.tickMs", ref.TickMS)
	viper.SetDefault("vehicle.maxSpeed", ref.Motion.VMaxVal)
	viper.SetDefault("vehicle.drivingAcceleration", ref.Motion.ADrive)
	viper.SetDefault("vehicle.reverseAcceleration", ref.Motion.AReverse)
	viper.SetDefault("vehicle.friction", ref.Motion.Friction)
	viper.SetDefault("vehicle.geometry.fullTurnDistance", ref.Geometry.FullTurnDistance)
	viper.SetDefault("vehicle.geometry.wheelCircumference", ref.Geometry.WheelCircumference)
	viper.SetDefault("vehicle.geometry.maxLeanDegrees", ref.Geometry.MaxLeanDegrees)
	viper.SetDefault("vehicle.geometry.leanStepDegrees", ref.Geometry.LeanStepDegrees)
	viper.SetDefault("vehicle.geometry.maxSteerDegrees", ref.Geometry.MaxSteerDegrees)

	viper.SetDefault("placement.anchorY", 0.0)
	viper.SetDefault("placement.distance", vehicle.DefaultPlacementDistance)

	viper.SetDefault("course", "")
	ap := autopilot.DefaultConfig()
	viper.SetDefault("autopilot.fullLockDegrees", ap.FullLockDegrees)
	viper.SetDefault("autopilot.arrivalRadius", ap.ArrivalRadius)
	viper.SetDefault("autopilot.deadbandDegrees", ap.DeadbandDegrees)
	viper.SetDefault("autopilot.loop", ap.Loop)

	viper.SetDefault("recorder.backend", "none")
	viper.SetDefault("recorder.batchSize", 500)
	viper.SetDefault("recorder.sqlitePath", "./drive.db")
	viper.SetDefault("recorder.postgresDsn", "")
	viper.SetDefault("recorder.influx.url", "http://localhost:8086")
	viper.SetDefault("recorder.influx.token", "")
	viper.SetDefault("recorder.influx.org", "drive")
	viper.SetDefault("recorder.influx.bucket", "poses")
	viper.SetDefault("recorder.influx.backupPath", "./drive-influx-backup.lp.gz")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "drive-engine")
	viper.SetDefault("otel.exportInterval", "10s")

	t := tui.DefaultConfig()
	viper.SetDefault("tui.cellsPerMetre", t.CellsPerMetre)
	viper.SetDefault("tui.holdWindow", t.HoldWindow.String())
	viper.SetDefault("tui.trailLength", t.TrailLength)
	viper.SetDefault("tui.frameInterval", t.FrameInterval.String())
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"log-level": "logLevel",
	"logs-dir":  "logsDir",
	"course":    "course",
	"recorder":  "recorder.backend",
	"scale":     "vehicle.scale",
	"otel":      "otel.enabled",
}

// BindFlags lets any of the known flags present in fs override the file.
// Flags left at their default do not.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", name, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetVehicleConfig returns the configured vehicle, validated.
func GetVehicleConfig() (vehicle.Vehicle, error) {
	v := vehicle.Vehicle{
		Name:   viper.GetString("vehicle.name"),
		Scale:  viper.GetFloat64("vehicle.scale"),
		TickMS: viper.GetFloat64("vehicle.tickMs"),
		Geometry: vehicle.Geometry{
			FullTurnDistance:   viper.GetFloat64("vehicle.geometry.fullTurnDistance"),
			WheelCircumference: viper.GetFloat64("vehicle.geometry.wheelCircumference"),
			MaxLeanDegrees:     viper.GetFloat64("vehicle.geometry.maxLeanDegrees"),
			LeanStepDegrees:    viper.GetFloat64("vehicle.geometry.leanStepDegrees"),
			MaxSteerDegrees:    viper.GetFloat64("vehicle.geometry.maxSteerDegrees"),
		},
		Motion: kinematics.ConstantAcceleration{
			VMaxVal:  viper.GetFloat64("vehicle.maxSpeed"),
			ADrive:   viper.GetFloat64("vehicle.drivingAcceleration"),
			AReverse: viper.GetFloat64("vehicle.reverseAcceleration"),
			Friction: viper.GetFloat64("vehicle.friction"),
		},
	}
	if _, err := v.Config(); err != nil {
		return vehicle.Vehicle{}, err
	}
	return v, nil
}

// GetPlacementConfig returns the placement settings.
func GetPlacementConfig() Placement {
	return Placement{
		AnchorY:  viper.GetFloat64("placement.anchorY"),
		Distance: viper.GetFloat64("placement.distance"),
	}
}

// GetAutopilotConfig returns the route follower settings.
func GetAutopilotConfig() autopilot.Config {
	return autopilot.Config{
		FullLockDegrees: viper.GetFloat64("autopilot.fullLockDegrees"),
		ArrivalRadius:   viper.GetFloat64("autopilot.arrivalRadius"),
		DeadbandDegrees: viper.GetFloat64("autopilot.deadbandDegrees"),
		Loop:            viper.GetBool("autopilot.loop"),
	}
}

// GetRecorderConfig returns the pose recorder settings.
func GetRecorderConfig() recorder.Config {
	return recorder.Config{
		Backend:     viper.GetString("recorder.backend"),
		BatchSize:   viper.GetInt("recorder.batchSize"),
		SQLitePath:  viper.GetString("recorder.sqlitePath"),
		PostgresDSN: viper.GetString("recorder.postgresDsn"),
		Influx: recorder.InfluxConfig{
			URL:        viper.GetString("recorder.influx.url"),
			Token:      viper.GetString("recorder.influx.token"),
			Org:        viper.GetString("recorder.influx.org"),
			Bucket:     viper.GetString("recorder.influx.bucket"),
			BackupPath: viper.GetString("recorder.influx.backupPath"),
		},
	}
}

// GetLogConfig returns the logging settings.
func GetLogConfig() logging.Config {
	return logging.Config{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		Console:        viper.GetBool("logConsole"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the metrics settings. The caller supplies the
// exporter's writer.
func GetOTelConfig() otel.Config {
	return otel.Config{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: durationOr("otel.exportInterval", 10*time.Second),
	}
}

// GetTUIConfig returns the terminal front end settings.
func GetTUIConfig() tui.Config {
	d := tui.DefaultConfig()
	return tui.Config{
		CellsPerMetre: viper.GetFloat64("tui.cellsPerMetre"),
		HoldWindow:    durationOr("tui.holdWindow", d.HoldWindow),
		TrailLength:   viper.GetInt("tui.trailLength"),
		FrameInterval: durationOr("tui.frameInterval", d.FrameInterval),
	}
}

// durationOr reads a duration key, falling back when it is unset or not
// positive.
func durationOr(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}
