// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/observability/metrics"
)

// MaxListLimit caps the page size of ListRuns.
const MaxListLimit = 500

// Interface abstracts the underlying database implementation and defines the
// interface for database operations.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error

	SaveRun(ctx context.Context, run *SimulationRun) error
	GetRun(ctx context.Context, id string) (SimulationRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]SimulationRun, int64, error)
	DeleteRun(ctx context.Context, id string) error

	SavePreset(ctx context.Context, preset *Preset) error
	GetPreset(ctx context.Context, name string) (Preset, error)
	ListPresets(ctx context.Context) ([]Preset, error)
	DeletePreset(ctx context.Context, name string) error
}

// storedRunsGauge is implemented by recorders that track the table size.
type storedRunsGauge interface {
	SetStoredRuns(n int64)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB // GORM database instance
	metrics metrics.Recorder
}

// Option configures a store created by New.
type Option func(*DataStore)

// WithMetrics sets the recorder for datastore operations.
func WithMetrics(r metrics.Recorder) Option {
	return func(ds *DataStore) {
		if r != nil {
			ds.metrics = r
		}
	}
}

// New creates the store selected in settings. It returns nil when neither
// SQLite nor MySQL output is enabled.
func New(settings *conf.Settings, opts ...Option) Interface {
	ds := DataStore{metrics: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(&ds)
	}

	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: ds, Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: ds, Settings: settings}
	default:
		return nil
	}
}

// recorder returns the configured recorder; stores built without New have none.
func (ds *DataStore) recorder() metrics.Recorder {
	if ds.metrics == nil {
		return metrics.NoopRecorder{}
	}
	return ds.metrics
}

// track records the outcome and duration of an operation.
func (ds *DataStore) track(operation string, start time.Time, err error) {
	r := ds.recorder()
	r.RecordDuration(operation, time.Since(start).Seconds())
	switch {
	case err == nil:
		r.RecordOperation(operation, metrics.StatusSuccess)
	case errors.IsNotFound(err):
		r.RecordOperation(operation, metrics.StatusMiss)
	default:
		r.RecordOperation(operation, metrics.StatusError)
		r.RecordError(operation, classifyError(err))
	}
}

// refreshRunCount updates the stored runs gauge when the recorder has one.
func (ds *DataStore) refreshRunCount(ctx context.Context) {
	g, ok := ds.recorder().(storedRunsGauge)
	if !ok {
		return
	}
	var n int64
	if err := ds.DB.WithContext(ctx).Model(&SimulationRun{}).Count(&n).Error; err != nil {
		GetLogger().Warn("failed to count runs", logger.Error(err))
		return
	}
	g.SetStoredRuns(n)
}

func (ds *DataStore) checkOpen() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (ds *DataStore) Ping(ctx context.Context) error {
	if err := ds.checkOpen(); err != nil {
		return err
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

// SaveRun inserts a new run. A run without an ID is rejected.
func (ds *DataStore) SaveRun(ctx context.Context, run *SimulationRun) (err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbInsert, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return err
	}
	if run.ID == "" {
		return errors.ValidationError("simulation run has no ID")
	}

	if err := ds.DB.WithContext(ctx).Create(run).Error; err != nil {
		return dbError(err, "save_run")
	}

	ds.refreshRunCount(ctx)
	return nil
}

// GetRun retrieves a run by its ID.
func (ds *DataStore) GetRun(ctx context.Context, id string) (run SimulationRun, err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbQuery, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return SimulationRun{}, err
	}

	if err := ds.DB.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SimulationRun{}, errors.NotFoundError("datastore", "run", id)
		}
		return SimulationRun{}, dbError(err, "get_run")
	}
	return run, nil
}

// ListRuns returns runs newest first together with the total number of runs.
// limit is clamped to [1, MaxListLimit].
func (ds *DataStore) ListRuns(ctx context.Context, limit, offset int) (runs []SimulationRun, total int64, err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbQuery, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return nil, 0, err
	}
	limit = max(1, min(limit, MaxListLimit))
	offset = max(0, offset)

	db := ds.DB.WithContext(ctx)
	if err := db.Model(&SimulationRun{}).Count(&total).Error; err != nil {
		return nil, 0, dbError(err, "count_runs")
	}
	if err := db.Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, 0, dbError(err, "list_runs")
	}
	return runs, total, nil
}

// DeleteRun removes a run.
func (ds *DataStore) DeleteRun(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbDelete, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return err
	}

	result := ds.DB.WithContext(ctx).Delete(&SimulationRun{}, "id = ?", id)
	if result.Error != nil {
		return dbError(result.Error, "delete_run")
	}
	if result.RowsAffected == 0 {
		return errors.NotFoundError("datastore", "run", id)
	}

	ds.refreshRunCount(ctx)
	return nil
}

// SavePreset creates the preset or replaces the inputs of an existing one
// with the same name.
func (ds *DataStore) SavePreset(ctx context.Context, preset *Preset) (err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbInsert, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return err
	}
	if preset.Name == "" {
		return errors.ValidationError("preset name is required")
	}

	err = ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"radius_nm", "reaction_time_min", "fwhm_nm", "zr_concentration", "core_shell", "updated_at",
		}),
	}).Create(preset).Error
	if err != nil {
		return dbError(err, "save_preset")
	}
	return nil
}

// GetPreset retrieves a preset by name.
func (ds *DataStore) GetPreset(ctx context.Context, name string) (preset Preset, err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbQuery, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return Preset{}, err
	}

	if err := ds.DB.WithContext(ctx).First(&preset, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Preset{}, errors.NotFoundError("datastore", "preset", name)
		}
		return Preset{}, dbError(err, "get_preset")
	}
	return preset, nil
}

// ListPresets returns every preset ordered by name.
func (ds *DataStore) ListPresets(ctx context.Context) (presets []Preset, err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbQuery, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	if err := ds.DB.WithContext(ctx).Order("name").Find(&presets).Error; err != nil {
		return nil, dbError(err, "list_presets")
	}
	return presets, nil
}

// DeletePreset removes a preset.
func (ds *DataStore) DeletePreset(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { ds.track(metrics.OpDbDelete, start, err) }()

	if err := ds.checkOpen(); err != nil {
		return err
	}

	result := ds.DB.WithContext(ctx).Delete(&Preset{}, "name = ?", name)
	if result.Error != nil {
		return dbError(result.Error, "delete_preset")
	}
	if result.RowsAffected == 0 {
		return errors.NotFoundError("datastore", "preset", name)
	}
	return nil
}

// closeDB closes the connection pool behind db.
func closeDB(db *gorm.DB, dbType string) error {
	if db == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}

	GetLogger().Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}

// performAutoMigration creates or updates the tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&SimulationRun{}, &Preset{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		GetLogger().Info("database connection initialized",
			logger.String("db_type", dbType),
			logger.String("connection", connectionInfo))
	}

	return nil
}
