package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

const defaultBatchSize = 500

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID            uint   `gorm:"primarykey"`
	Name          string `gorm:"index"`
	StartedAt     time.Time
	EndedAt       *time.Time
	VehicleConfig datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
	Ticks         uint64
	PathWKT       string
	PathLength    float64
}

func (SessionRecord) TableName() string { return "sessions" }

// PoseSample is one row of the pose_samples table.
type PoseSample struct {
	ID           uint   `gorm:"primarykey"`
	SessionID    uint   `gorm:"index:idx_session_tick"`
	Tick         uint64 `gorm:"index:idx_session_tick"`
	ElapsedMS    int64
	X            float64
	Y            float64
	Z            float64
	WorldX       float64
	WorldZ       float64
	HeadingDeg   float64
	LeanDeg      float64
	SteerDeg     float64
	WheelSpinDeg float64
	Velocity     float64
	Acceleration float64
	Regime       string `gorm:"size:32"`
	Direction    uint8
	SteerRatio   float64
}

func (PoseSample) TableName() string { return "pose_samples" }

var gormConfig = func(batch int) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenSQLite opens a SQLite database with the pure-Go driver. An empty path
// gives a private in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(defaultBatchSize))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	// Every pooled connection to ":memory:" would be its own database.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// OpenPostgres opens a Postgres database.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig(defaultBatchSize))
}

// Gorm records sessions and samples into a SQL database.
type Gorm struct {
	db        *gorm.DB
	log       zerolog.Logger
	batchSize int

	session SessionRecord
	pending []PoseSample
	path    []vmath.Vec3
	ticks   uint64
}

// NewGorm creates a recorder on an open database. It takes ownership of db.
func NewGorm(db *gorm.DB, batchSize int, log zerolog.Logger) *Gorm {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Gorm{db: db, log: log, batchSize: batchSize}
}

// DB exposes the underlying connection.
func (g *Gorm) DB() *gorm.DB { return g.db }

// SessionID returns the primary key of the current session row.
func (g *Gorm) SessionID() uint { return g.session.ID }

func (g *Gorm) Init(ctx context.Context, s Session) error {
	db := g.db.WithContext(ctx)
	if err := db.AutoMigrate(&SessionRecord{}, &PoseSample{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	cfg, err := json.Marshal(s.Vehicle)
	if err != nil {
		return fmt.Errorf("encoding vehicle config: %w", err)
	}
	g.session = SessionRecord{
		Name:          s.ID,
		StartedAt:     s.StartedAt.UTC(),
		VehicleConfig: datatypes.JSON(cfg),
	}
	if err := db.Create(&g.session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	g.pending = make([]PoseSample, 0, g.batchSize)
	g.path = g.path[:0]
	g.ticks = 0
	g.log.Debug().Uint("session_id", g.session.ID).Str("dialect", g.db.Dialector.Name()).Msg("recording session")
	return nil
}

func (g *Gorm) Consume(ctx context.Context, f vehicle.Frame) error {
	p := f.Pose
	world := p.WorldPosition()
	g.pending = append(g.pending, PoseSample{
		SessionID:    g.session.ID,
		Tick:         f.Tick,
		ElapsedMS:    f.Elapsed.Milliseconds(),
		X:            p.Position.X,
		Y:            p.Position.Y,
		Z:            p.Position.Z,
		WorldX:       world.X,
		WorldZ:       world.Z,
		HeadingDeg:   p.HeadingDegrees,
		LeanDeg:      p.LeanDegrees,
		SteerDeg:     p.SteerDegrees,
		WheelSpinDeg: p.WheelSpinDegrees,
		Velocity:     p.Velocity,
		Acceleration: p.Acceleration,
		Regime:       p.Regime.String(),
		Direction:    uint8(f.Input.Direction),
		SteerRatio:   f.Input.SteerRatio,
	})
	g.path = append(g.path, world)
	g.ticks = f.Tick
	if len(g.pending) >= g.batchSize {
		return g.flush(ctx)
	}
	return nil
}

func (g *Gorm) flush(ctx context.Context) error {
	if len(g.pending) == 0 {
		return nil
	}
	if err := g.db.WithContext(ctx).CreateInBatches(&g.pending, g.batchSize).Error; err != nil {
		return fmt.Errorf("inserting %d pose samples: %w", len(g.pending), err)
	}
	g.pending = g.pending[:0]
	return nil
}

// Close flushes pending samples, stores the trajectory on the session row and
// closes the database. Without a prior Init it only closes the database.
func (g *Gorm) Close(ctx context.Context) error {
	if g.session.ID == 0 {
		return g.closeDB()
	}
	if err := g.flush(ctx); err != nil {
		return err
	}
	ls, err := Trajectory(g.path)
	if err != nil {
		_ = g.closeDB()
		return fmt.Errorf("finishing session: %w", err)
	}
	ended := time.Now().UTC()
	err = g.db.WithContext(ctx).Model(&g.session).Updates(map[string]interface{}{
		"ended_at":    ended,
		"ticks":       g.ticks,
		"path_wkt":    ls.AsText(),
		"path_length": ls.Length(),
	}).Error
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	g.log.Info().Uint("session_id", g.session.ID).Uint64("ticks", g.ticks).
		Float64("path_length", ls.Length()).Msg("session recorded")
	return g.closeDB()
}

func (g *Gorm) closeDB() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}
