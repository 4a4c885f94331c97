package datastore

import (
	"context"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// sqliteDSN appends the connection pragmas to the database path.
func sqliteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// Open opens the database file, creating its directory if needed, and migrates
// the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return errors.Newf("SQLite path is not configured").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dir, fileName := filepath.Split(path)
	if dir != "" {
		dir = conf.GetBasePath(dir)
	}
	absoluteFilePath := filepath.Join(dir, fileName)

	gormLogger := logger.NewGormLoggerAdapter(GetLogger(), time.Second)

	db, err := gorm.Open(sqlite.Open(sqliteDSN(absoluteFilePath)), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", "sqlite").
			FileContext(absoluteFilePath, 0).
			Build()
	}

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Debug, "SQLite", absoluteFilePath); err != nil {
		return err
	}

	store.refreshRunCount(context.Background())
	return nil
}

// Close closes the SQLite connection.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB, "sqlite")
}
