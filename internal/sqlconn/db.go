// Package sqlconn opens connections to the MySQL cost-reporting warehouse.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds the warehouse connection settings with named, validated
// fields.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	Charset         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DSN renders the driver connection string.
func (c Config) DSN() string {
	driverCfg := mysql.NewConfig()
	driverCfg.Net = "tcp"
	driverCfg.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	driverCfg.User = c.User
	driverCfg.Passwd = c.Password
	driverCfg.DBName = c.Database
	driverCfg.ParseTime = true
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	driverCfg.Params = map[string]string{"charset": charset}
	return driverCfg.FormatDSN()
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("warehouse host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("warehouse port is required")
	}
	if c.Database == "" {
		return fmt.Errorf("warehouse database is required")
	}
	return nil
}

// Opener hands out a database handle. The executor opens a fresh handle per
// partition task; tests substitute sqlmock-backed handles.
type Opener func(ctx context.Context) (*sql.DB, error)

// NewOpener returns an Opener for the configured warehouse. Each call opens
// and pings a new handle; the caller owns closing it.
func NewOpener(cfg Config) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		return Open(ctx, cfg)
	}
}

// Open opens a warehouse handle, applies pool limits, and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open warehouse db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse db: %w", err)
	}

	return db, nil
}
