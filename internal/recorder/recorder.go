// Package recorder persists the frames produced by the engine driver.
// Every backend satisfies engine.PoseSink through its Consume method.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cxd309/drive-engine/internal/vehicle"
)

// ErrDisabled is returned by New when recording is switched off.
var ErrDisabled = errors.New("recorder disabled")

// Session identifies one recorded drive.
type Session struct {
	ID        string
	Vehicle   vehicle.Vehicle
	StartedAt time.Time
}

// Backend is the interface all recorder implementations must satisfy.
type Backend interface {
	Init(ctx context.Context, s Session) error
	Consume(ctx context.Context, f vehicle.Frame) error
	Close(ctx context.Context) error
}

// InfluxConfig holds the influx backend settings.
type InfluxConfig struct {
	URL        string `mapstructure:"url"`
	Token      string `mapstructure:"token"`
	Org        string `mapstructure:"org"`
	Bucket     string `mapstructure:"bucket"`
	BackupPath string `mapstructure:"backupPath"` // gzip line protocol, used when the server is unreachable
}

// Config selects and configures a backend.
type Config struct {
	Backend     string       `mapstructure:"backend"` // none, memory, sqlite, postgres, influx
	BatchSize   int          `mapstructure:"batchSize"`
	SQLitePath  string       `mapstructure:"sqlitePath"` // empty = in-memory
	PostgresDSN string       `mapstructure:"postgresDsn"`
	Influx      InfluxConfig `mapstructure:"influx"`
}

// New creates a recorder backend based on configuration.
func New(cfg Config, log zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, ErrDisabled
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return NewGorm(db, cfg.BatchSize, log), nil
	case "postgres":
		db, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return NewGorm(db, cfg.BatchSize, log), nil
	case "influx":
		return NewInflux(cfg.Influx, log), nil
	default:
		return nil, fmt.Errorf("unknown recorder backend: %s", cfg.Backend)
	}
}
