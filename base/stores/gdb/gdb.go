package gdb

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
)

type Config struct {
	Driver          string        `toml:"driver" mapstructure:"driver" json:"driver"` // mysql, postgres or sqlite
	Dsn             string        `toml:"dsn" mapstructure:"dsn" json:"dsn"`
	MaxIdleConns    int           `toml:"max_idle_conns" mapstructure:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `toml:"max_open_conns" mapstructure:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime" mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	LogLevel        string        `toml:"log_level" mapstructure:"log_level" json:"log_level"`
}

func dialector(c *Config) (gorm.Dialector, error) {
	switch c.Driver {
	case "", "mysql":
		return mysql.Open(c.Dsn), nil
	case "postgres":
		return postgres.Open(c.Dsn), nil
	case "sqlite":
		return sqlite.Open(c.Dsn), nil
	default:
		return nil, errors.Errorf("unsupported db driver %q", c.Driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	default:
		return logger.Error
	}
}

// NewDB opens the configured database. Duplicate key violations are translated
// to gorm.ErrDuplicatedKey.
func NewDB(c *Config) (*gorm.DB, error) {
	d, err := dialector(c)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(gormLogLevel(c.LogLevel)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed on open db")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed on get sql db")
	}
	if c.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	zap.L().Info("db connected", zap.String("driver", c.Driver))
	return db, nil
}

// Migrate creates or alters the tables owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&avs.Identity{}, &avs.TaskTemplate{}, &avs.UserTask{})
}
