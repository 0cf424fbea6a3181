package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/drive-engine/internal/vehicle"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"vehicle": { "name": "kart", "scale": 0.5, "geometry": { "maxSteerDegrees": 45 } },
		"recorder": { "backend": "sqlite", "influx": { "bucket": "karts" } },
		"tui": { "holdWindow": "200ms" }
	}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))

	v, err := GetVehicleConfig()
	require.NoError(t, err)
	assert.Equal(t, "kart", v.Name)
	assert.Equal(t, 0.5, v.Scale)
	assert.Equal(t, 45.0, v.Geometry.MaxSteerDegrees)
	assert.Equal(t, vehicle.DefaultGeometry().FullTurnDistance, v.Geometry.FullTurnDistance)

	rc := GetRecorderConfig()
	assert.Equal(t, "sqlite", rc.Backend)
	assert.Equal(t, "karts", rc.Influx.Bucket)
	assert.Equal(t, "drive", rc.Influx.Org)
	assert.Equal(t, 500, rc.BatchSize)

	assert.Equal(t, 200*time.Millisecond, GetTUIConfig().HoldWindow)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	v, err := GetVehicleConfig()
	require.NoError(t, err)
	assert.Equal(t, vehicle.DefaultVehicle(), v)

	lc := GetLogConfig()
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "./drivelogs", lc.Dir)
	assert.True(t, lc.Console)
	assert.False(t, lc.GraylogEnabled)
	assert.Equal(t, "localhost:12201", lc.GraylogAddress)

	assert.Equal(t, "none", GetRecorderConfig().Backend)

	oc := GetOTelConfig()
	assert.False(t, oc.Enabled)
	assert.Equal(t, "drive-engine", oc.ServiceName)
	assert.Equal(t, 10*time.Second, oc.ExportInterval)

	pc := GetPlacementConfig()
	assert.Equal(t, 0.0, pc.AnchorY)
	assert.Equal(t, vehicle.DefaultPlacementDistance, pc.Distance)

	ac := GetAutopilotConfig()
	assert.Equal(t, 30.0, ac.FullLockDegrees)
	assert.False(t, ac.Loop)

	tc := GetTUIConfig()
	assert.Equal(t, 150*time.Millisecond, tc.HoldWindow)
	assert.Equal(t, 33*time.Millisecond, tc.FrameInterval)
	assert.Equal(t, 200, tc.TrailLength)
	assert.Equal(t, "", GetString("course"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	var notFound viper.ConfigFileNotFoundError
	assert.True(t, errors.As(err, &notFound))

	// Defaults are still in place.
	assert.Equal(t, "info", viper.GetString("logLevel"))
}

func TestGetVehicleConfig_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"vehicle": {"geometry": {"wheelCircumference": 0}}}`)))

	_, err := GetVehicleConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, vehicle.ErrInvalidConfig)
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"recorder": {"backend": "memory"}, "logLevel": "warn"}`)))

	fs := pflag.NewFlagSet("drive", pflag.ContinueOnError)
	fs.String("recorder", "none", "")
	fs.String("log-level", "info", "")
	fs.String("course", "", "")
	require.NoError(t, fs.Parse([]string{"--recorder", "influx", "--course", "loop.json"}))
	require.NoError(t, BindFlags(fs))

	assert.Equal(t, "influx", GetRecorderConfig().Backend)
	assert.Equal(t, "loop.json", GetString("course"))
	// Unchanged flags leave the file value alone.
	assert.Equal(t, "warn", GetLogConfig().Level)
}
