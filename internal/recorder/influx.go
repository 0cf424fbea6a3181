package recorder

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/cxd309/drive-engine/internal/vehicle"
)

// PoseMeasurement is the influx measurement every frame is written to.
const PoseMeasurement = "vehicle_pose"

// Influx writes frames to InfluxDB, or to a gzip line-protocol backup file
// when the server cannot be reached at Init.
type Influx struct {
	cfg     InfluxConfig
	log     zerolog.Logger
	session Session

	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
}

// NewInflux creates an influx recorder. Nothing is contacted until Init.
func NewInflux(cfg InfluxConfig, log zerolog.Logger) *Influx {
	return &Influx{cfg: cfg, log: log}
}

// Online reports whether frames go to the server rather than the backup file.
func (r *Influx) Online() bool { return r.writer != nil }

func (r *Influx) Init(ctx context.Context, s Session) error {
	r.session = s
	r.client = influxdb2.NewClientWithOptions(r.cfg.URL, r.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := r.client.Ping(ctx)
	if err == nil && running {
		r.writer = r.client.WriteAPI(r.cfg.Org, r.cfg.Bucket)
		go func(errs <-chan error) {
			for writeErr := range errs {
				r.log.Error().Err(writeErr).Str("bucket", r.cfg.Bucket).Msg("Error sending data to InfluxDB")
			}
		}(r.writer.Errors())
		r.log.Info().Str("url", r.cfg.URL).Msg("InfluxDB client initialized")
		return nil
	}

	r.client.Close()
	r.client = nil
	if r.cfg.BackupPath == "" {
		return fmt.Errorf("influx unreachable at %s and no backup path configured: %w", r.cfg.URL, pingErr(err))
	}
	r.log.Warn().Err(err).Str("backupPath", r.cfg.BackupPath).
		Msg("Failed to reach InfluxDB, writing to backup file")
	file, err := os.OpenFile(r.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	r.backupFile = file
	r.backup = gzip.NewWriter(file)
	return nil
}

func pingErr(err error) error {
	if err != nil {
		return err
	}
	return errors.New("server not ready")
}

func (r *Influx) Consume(_ context.Context, f vehicle.Frame) error {
	point := PosePoint(r.session, f)
	if r.writer != nil {
		r.writer.WritePoint(point)
		return nil
	}
	if r.backup == nil {
		return errors.New("influx recorder not initialized")
	}
	line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := r.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes and releases the client or the backup file.
func (r *Influx) Close(context.Context) error {
	if r.writer != nil {
		r.writer.Flush()
		r.client.Close()
		r.writer = nil
	}
	if r.backup != nil {
		if err := r.backup.Close(); err != nil {
			return fmt.Errorf("closing backup writer: %w", err)
		}
		r.backup = nil
		return r.backupFile.Close()
	}
	return nil
}

// PosePoint converts a frame to an influx point. Its timestamp is the
// session start plus the frame's simulated elapsed time.
func PosePoint(s Session, f vehicle.Frame) *influxdb2_write.Point {
	p := f.Pose
	world := p.WorldPosition()
	return influxdb2_write.NewPoint(
		PoseMeasurement,
		map[string]string{
			"session": s.ID,
			"vehicle": s.Vehicle.Name,
			"regime":  p.Regime.String(),
		},
		map[string]interface{}{
			"tick":           int64(f.Tick),
			"x":              p.Position.X,
			"y":              p.Position.Y,
			"z":              p.Position.Z,
			"world_x":        world.X,
			"world_z":        world.Z,
			"heading_deg":    p.HeadingDegrees,
			"lean_deg":       p.LeanDegrees,
			"steer_deg":      p.SteerDegrees,
			"wheel_spin_deg": p.WheelSpinDegrees,
			"velocity":       p.Velocity,
			"acceleration":   p.Acceleration,
			"steer_ratio":    f.Input.SteerRatio,
		},
		s.StartedAt.Add(f.Elapsed),
	)
}
