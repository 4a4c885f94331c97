package datastore

import (
	"context"
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/errors"
	"github.com/qdlab/nanolume/internal/logger"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// mysqlDSN builds the connection string for the configured server.
func mysqlDSN(s conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to the MySQL server and migrates the schema.
func (store *MySQLStore) Open() error {
	settings := store.Settings.Output.MySQL
	dsn := mysqlDSN(settings)

	gormLogger := logger.NewGormLoggerAdapter(GetLogger(), time.Second)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", settings.Host),
			logger.String("port", settings.Port),
			logger.String("database", settings.Database),
			logger.Error(err))
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", "mysql").
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Debug, "MySQL", net.JoinHostPort(settings.Host, settings.Port)); err != nil {
		return err
	}

	store.refreshRunCount(context.Background())
	return nil
}

// Close closes the MySQL connection pool.
func (store *MySQLStore) Close() error {
	return closeDB(store.DB, "mysql")
}
