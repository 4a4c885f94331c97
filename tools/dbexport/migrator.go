package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qdlab/nanolume/internal/datastore"
)

// Migrator copies rows from the source database to the target.
type Migrator struct {
	cfg      Config
	sourceDB *gorm.DB
	targetDB *gorm.DB
	out      io.Writer
}

// MigrationStats tracks migration statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table migration statistics.
type TableStats struct {
	Name     string
	Migrated int64
	Batches  int
	Duration time.Duration
}

// Print writes the migration summary.
func (s *MigrationStats) Print(w io.Writer) {
	fmt.Fprintln(w, "\n=== Export Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Fprintf(w, "%-20s %10s %10s %12s\n", "Table", "Migrated", "Batches", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 55))

	var total int64
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-20s %10d %10d %12s\n", t.Name, t.Migrated, t.Batches, t.Duration.Round(time.Millisecond))
		total += t.Migrated
	}

	fmt.Fprintln(w, strings.Repeat("-", 55))
	fmt.Fprintf(w, "%-20s %10d\n", "TOTAL", total)
}

// NewMigrator creates a Migrator over two open connections.
func NewMigrator(source, target *gorm.DB, cfg Config, out io.Writer) *Migrator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	return &Migrator{cfg: cfg, sourceDB: source, targetDB: target, out: out}
}

// Run creates the target tables if needed, optionally empties them and
// upserts every source row.
func (m *Migrator) Run() (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	if err := m.targetDB.AutoMigrate(&datastore.SimulationRun{}, &datastore.Preset{}); err != nil {
		return nil, fmt.Errorf("failed to create target tables: %w", err)
	}

	if m.cfg.Clean {
		if err := m.cleanTables(); err != nil {
			return nil, fmt.Errorf("failed to clean tables: %w", err)
		}
	}

	runs, err := copyTable[datastore.SimulationRun](m, "simulation_runs")
	if err != nil {
		return stats, err
	}
	stats.Tables = append(stats.Tables, *runs)

	presets, err := copyTable[datastore.Preset](m, "presets")
	if err != nil {
		return stats, err
	}
	stats.Tables = append(stats.Tables, *presets)

	stats.EndTime = time.Now()
	return stats, nil
}

// cleanTables deletes all target rows.
func (m *Migrator) cleanTables() error {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for _, model := range []any{&datastore.SimulationRun{}, &datastore.Preset{}} {
		if err := m.targetDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clean %T: %w", model, err)
		}
	}
	return nil
}

// copyTable streams T from source to target in primary key order.
func copyTable[T any](m *Migrator, name string) (*TableStats, error) {
	stats := &TableStats{Name: name}
	start := time.Now()

	var batch []T
	result := m.sourceDB.Model(new(T)).FindInBatches(&batch, m.cfg.BatchSize, func(_ *gorm.DB, n int) error {
		if err := m.targetDB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&batch).Error; err != nil {
			return fmt.Errorf("batch %d: %w", n, err)
		}
		stats.Migrated += int64(len(batch))
		stats.Batches = n
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  %s: batch %d, %d rows\n", name, n, len(batch))
		}
		return nil
	})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", name, result.Error)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}
